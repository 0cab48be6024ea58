package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soless-ai/soless/internal/api"
	"github.com/soless-ai/soless/internal/app"
	"github.com/soless-ai/soless/internal/bot"
	"github.com/soless-ai/soless/internal/chat"
	"github.com/soless-ai/soless/internal/config"
	"github.com/soless-ai/soless/internal/database"
	"github.com/soless-ai/soless/internal/documents"
	"github.com/soless-ai/soless/internal/knowledge"
	"github.com/soless-ai/soless/internal/logging"
	inats "github.com/soless-ai/soless/internal/nats"
	"github.com/soless-ai/soless/internal/persona"
	iredis "github.com/soless-ai/soless/internal/redis"
	"github.com/soless-ai/soless/internal/server"
	"github.com/soless-ai/soless/internal/settings"
	ixmpp "github.com/soless-ai/soless/internal/xmpp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	closer := logging.Setup(cfg.Log)
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.Build(ctx, cfg, app.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer core.Close()

	checks := map[string]api.HealthCheck{}
	if core.Pool != nil {
		checks["database"] = func(ctx context.Context) error { return database.HealthCheck(ctx, core.Pool) }
	}
	if core.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return iredis.HealthCheck(ctx, core.Redis) }
	}

	sealer, err := settings.NewSealer(cfg.Encryption.Key)
	if err != nil {
		return fmt.Errorf("creating sealer: %w", err)
	}
	botSettings, err := bot.NewSettingsService(ctx, core.Records, sealer)
	if err != nil {
		return err
	}

	chatHandler := chat.NewHandler(core.Chat)
	docHandler := documents.NewHandler(core.Documents, cfg.Documents.MaxUploadBytes)
	personaHandler := persona.NewHandler(core.Personas)
	botHandler := bot.NewHandler(botSettings)
	knowledgeHandler := knowledge.NewHandler(core.Knowledge)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.XMPP.Enabled {
		natsClient, err := inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer natsClient.Close()
		checks["nats"] = natsClient.Ping

		var identities bot.IdentityStore = bot.NewMemoryIdentityStore()
		if core.Redis != nil {
			identities = bot.NewRedisIdentityStore(core.Redis, cfg.Conversations.TTL)
		}

		if err := startBot(ctx, g, cfg.XMPP, bridgeAckWait(cfg.Completion), natsClient, core.Chat, identities, botSettings); err != nil {
			return err
		}
	}

	// Keep the memoized blob fresh when files change on disk
	if core.Cached != nil {
		core.Cached.Warm(ctx)
		if fs, ok := core.Documents.(*documents.FileStore); ok && cfg.Documents.Watch {
			w := documents.NewWatcher(fs.Dir(), core.Cached.Warm)
			g.Go(func() error {
				// Without the watcher, changes still land once the memo TTL lapses.
				if err := w.Run(ctx); err != nil {
					slog.Warn("documents watcher stopped", "error", err)
				}
				return nil
			})
		}
	}

	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Checks:             checks,
		CompletionMode:     func() string { return string(core.Gateway.Mode()) },
	}, api.HandlerSet{
		CreateConversation: chatHandler.Create,
		GetConversation:    chatHandler.Get,
		SendMessage:        chatHandler.SendMessage,

		UploadDocument: docHandler.Upload,
		ListDocuments:  docHandler.List,
		DeleteDocument: docHandler.Delete,

		GetPersona:        personaHandler.Get,
		ReplacePersona:    personaHandler.Replace,
		GetBotSettings:    botHandler.GetSettings,
		UpdateBotSettings: botHandler.UpdateSettings,
		PreviewKnowledge:  knowledgeHandler.Preview,
	})

	srv := server.New(cfg.Server, router)
	g.Go(func() error { return srv.Run(ctx) })

	slog.Info("SOLess AI engine starting",
		"addr", srv.Addr(),
		"completion", core.Gateway.Mode(),
		"documents", cfg.Documents.Backend,
		"conversations", cfg.Conversations.Backend,
		"bot", cfg.XMPP.Enabled,
	)

	return g.Wait()
}

// bridgeAckWait outlasts one completion even if a progress heartbeat is lost.
func bridgeAckWait(cfg config.CompletionConfig) time.Duration {
	return cfg.Timeout + 3*bot.ProgressInterval
}

// startBot wires XMPP -> NATS -> bridge -> NATS -> XMPP.
func startBot(
	ctx context.Context,
	g *errgroup.Group,
	cfg config.XMPPConfig,
	ackWait time.Duration,
	natsClient *inats.Client,
	chatSvc *chat.Service,
	identities bot.IdentityStore,
	botSettings *bot.SettingsService,
) error {
	js := natsClient.JetStream()
	publisher := inats.NewPublisher(js)
	consumers := inats.NewConsumerManager(js)

	inbound, err := consumers.EnsureConsumer(ctx, inats.StreamMessages, "bot-bridge", inats.SubjectInboundMessage, ackWait)
	if err != nil {
		return err
	}
	outbound, err := consumers.EnsureConsumer(ctx, inats.StreamMessages, "outbound-relay", inats.SubjectOutboundMessage, 0)
	if err != nil {
		return err
	}

	handler := ixmpp.NewHandler(publisher)
	comp, err := ixmpp.NewComponent(cfg, botSettings.Get().Secret, handler)
	if err != nil {
		return fmt.Errorf("creating XMPP component: %w", err)
	}

	bridge := bot.NewBridge(chatSvc, identities, botSettings, publisher)
	relay := ixmpp.NewOutboundRelay(handler, comp.Sender())

	g.Go(func() error { return comp.Run(ctx) })
	g.Go(func() error { return bridge.Run(ctx, inbound) })
	g.Go(func() error { return relay.Run(ctx, outbound) })
	return nil
}
