// Package app assembles the storage and conversation components from Config
// for the API server and the admin CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/soless-ai/soless/internal/chat"
	"github.com/soless-ai/soless/internal/completion"
	"github.com/soless-ai/soless/internal/config"
	"github.com/soless-ai/soless/internal/conversation"
	"github.com/soless-ai/soless/internal/database"
	"github.com/soless-ai/soless/internal/documents"
	"github.com/soless-ai/soless/internal/knowledge"
	"github.com/soless-ai/soless/internal/persona"
	iredis "github.com/soless-ai/soless/internal/redis"
	"github.com/soless-ai/soless/internal/settings"
)

// Core holds the wired components. Close releases connections.
type Core struct {
	Pool  *pgxpool.Pool
	Redis *goredis.Client

	Records       settings.RecordStore
	Documents     documents.Store
	Personas      *persona.Service
	Knowledge     knowledge.Builder
	Cached        *knowledge.CachedAssembler // nil unless memoization is on
	Conversations conversation.Store
	Gateway       completion.Gateway
	Chat          *chat.Service

	closers []func()
}

// Options tune Build for the caller.
type Options struct {
	// Migrate applies pending migrations before connecting to Postgres.
	Migrate bool
	// InMemoryConversations forces the memory conversation store.
	InMemoryConversations bool
}

// Build connects only the backends cfg selects and wires the chat service.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Core, error) {
	c := &Core{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	if cfg.UsesPostgres() {
		if opts.Migrate {
			if err := database.RunMigrations(cfg.DB.DSN()); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
		}
		pool, err := database.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
	}

	useRedis := cfg.UsesRedis() && !opts.InMemoryConversations
	if useRedis {
		client, err := iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		c.Redis = client
		c.closers = append(c.closers, func() { _ = client.Close() })
	}

	var err error
	if c.Records, err = recordStore(cfg, c.Pool); err != nil {
		return nil, err
	}
	if c.Documents, err = documentStore(cfg, c.Pool); err != nil {
		return nil, err
	}
	if c.Personas, err = persona.NewService(ctx, c.Records); err != nil {
		return nil, err
	}

	normalizer := documents.NewNormalizer()
	if cfg.Knowledge.Memoize {
		c.Cached = knowledge.NewCachedAssembler(c.Documents, normalizer, c.Personas, cfg.Knowledge.MemoTTL)
		c.Knowledge = c.Cached
	} else {
		c.Knowledge = knowledge.NewAssembler(c.Documents, normalizer, c.Personas)
	}

	if useRedis {
		c.Conversations = conversation.NewRedisStore(c.Redis, cfg.Conversations.TTL)
	} else {
		c.Conversations = conversation.NewMemoryStore(cfg.Conversations.TTL, cfg.Conversations.Max)
	}

	c.Gateway = completion.New(ctx, cfg.Completion)
	c.Chat = chat.NewService(c.Conversations, c.Knowledge, c.Personas, c.Gateway)

	ok = true
	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func recordStore(cfg *config.Config, pool *pgxpool.Pool) (settings.RecordStore, error) {
	if cfg.Settings.Backend == config.BackendPostgres {
		return settings.NewPostgresStore(pool), nil
	}
	s, err := settings.NewFileStore(cfg.Settings.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening settings dir: %w", err)
	}
	return s, nil
}

func documentStore(cfg *config.Config, pool *pgxpool.Pool) (documents.Store, error) {
	if cfg.Documents.Backend == config.BackendPostgres {
		return documents.NewPostgresStore(pool), nil
	}
	s, err := documents.NewFileStore(cfg.Documents.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening documents dir: %w", err)
	}
	return s, nil
}
