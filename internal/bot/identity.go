package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IdentityStore maps an external chat identity to its conversation id.
// At most one conversation is bound to an identity at any time.
type IdentityStore interface {
	// Resolve returns the bound conversation id, calling create and binding
	// its result when the identity has none.
	Resolve(ctx context.Context, identity string, create func(context.Context) (string, error)) (string, error)
	// Forget unbinds identity only if it is still bound to conversationID.
	Forget(ctx context.Context, identity, conversationID string) error
}

// MemoryIdentityStore keeps bindings in process memory.
type MemoryIdentityStore struct {
	mu       sync.Mutex
	bindings map[string]string
}

func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{bindings: make(map[string]string)}
}

func (s *MemoryIdentityStore) Resolve(ctx context.Context, identity string, create func(context.Context) (string, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bindings[identity]; ok {
		return id, nil
	}
	id, err := create(ctx)
	if err != nil {
		return "", err
	}
	s.bindings[identity] = id
	return id, nil
}

func (s *MemoryIdentityStore) Forget(_ context.Context, identity, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bindings[identity] == conversationID {
		delete(s.bindings, identity)
	}
	return nil
}

// forgetScript deletes the binding only when it still holds the given id.
var forgetScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// lookupScript reads a binding and slides its expiry. Pending claims keep
// their own short expiry so a crashed claimant frees the identity quickly.
var lookupScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[2])) ~= ARGV[2] and tonumber(ARGV[1]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return v
`)

// bindScript replaces a claim with the created conversation id, provided the
// claim is still ours.
var bindScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

const claimPrefix = "claim:"

var (
	claimTTL  = 10 * time.Second
	claimPoll = 20 * time.Millisecond
)

// RedisIdentityStore shares bindings between processes. The first contact
// claims the identity with SETNX before creating a conversation; concurrent
// callers wait for the claim to turn into a binding, so exactly one
// conversation is created per identity.
type RedisIdentityStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisIdentityStore creates a store whose bindings expire after ttl of
// inactivity. A zero ttl keeps bindings forever.
func NewRedisIdentityStore(client redis.Cmdable, ttl time.Duration) *RedisIdentityStore {
	return &RedisIdentityStore{client: client, ttl: ttl}
}

func identityKey(identity string) string {
	return "bot:identity:" + identity
}

func (s *RedisIdentityStore) Resolve(ctx context.Context, identity string, create func(context.Context) (string, error)) (string, error) {
	key := identityKey(identity)

	for {
		id, err := s.lookup(ctx, key)
		if err != nil {
			return "", err
		}

		switch {
		case id == "":
			claim := claimPrefix + uuid.NewString()
			won, err := s.client.SetNX(ctx, key, claim, claimTTL).Result()
			if err != nil {
				return "", fmt.Errorf("claiming identity %s: %w", identity, err)
			}
			if won {
				return s.bind(ctx, identity, key, claim, create)
			}
		case strings.HasPrefix(id, claimPrefix):
			// Another caller is creating the conversation.
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(claimPoll):
			}
		default:
			return id, nil
		}
	}
}

func (s *RedisIdentityStore) bind(ctx context.Context, identity, key, claim string, create func(context.Context) (string, error)) (string, error) {
	created, err := create(ctx)
	if err != nil {
		if rerr := forgetScript.Run(context.WithoutCancel(ctx), s.client, []string{key}, claim).Err(); rerr != nil && !errors.Is(rerr, redis.Nil) {
			slog.Warn("releasing identity claim", "error", rerr, "identity", identity)
		}
		return "", err
	}

	ok, err := bindScript.Run(ctx, s.client, []string{key}, claim, created, s.ttl.Milliseconds()).Int()
	if err != nil {
		return "", fmt.Errorf("binding identity %s: %w", identity, err)
	}
	if ok == 0 {
		return "", fmt.Errorf("binding identity %s: claim expired before conversation %s was bound", identity, created)
	}
	return created, nil
}

func (s *RedisIdentityStore) lookup(ctx context.Context, key string) (string, error) {
	id, err := lookupScript.Run(ctx, s.client, []string{key}, s.ttl.Milliseconds(), claimPrefix).Text()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up %s: %w", key, err)
	}
	return id, nil
}

func (s *RedisIdentityStore) Forget(ctx context.Context, identity, conversationID string) error {
	if err := forgetScript.Run(ctx, s.client, []string{identityKey(identity)}, conversationID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("forgetting identity %s: %w", identity, err)
	}
	return nil
}
