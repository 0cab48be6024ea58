package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisIdentities(t *testing.T, ttl time.Duration) (*RedisIdentityStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIdentityStore(client, ttl), mr
}

func identityFactories() map[string]func(t *testing.T) IdentityStore {
	return map[string]func(t *testing.T) IdentityStore{
		"memory": func(t *testing.T) IdentityStore { return NewMemoryIdentityStore() },
		"redis": func(t *testing.T) IdentityStore {
			s, _ := newRedisIdentities(t, time.Hour)
			return s
		},
	}
}

// sequence hands out conv-1, conv-2, ... and counts calls.
type sequence struct {
	n atomic.Int64
}

func (s *sequence) create(context.Context) (string, error) {
	return fmt.Sprintf("conv-%d", s.n.Add(1)), nil
}

func TestIdentityStore_ResolveIsIdempotent(t *testing.T) {
	for name, newStore := range identityFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			seq := &sequence{}

			first, err := s.Resolve(ctx, "alice@example.org", seq.create)
			require.NoError(t, err)
			second, err := s.Resolve(ctx, "alice@example.org", seq.create)
			require.NoError(t, err)
			other, err := s.Resolve(ctx, "bob@example.org", seq.create)
			require.NoError(t, err)

			assert.Equal(t, first, second)
			assert.NotEqual(t, first, other)
			assert.Equal(t, int64(2), seq.n.Load())
		})
	}
}

func TestIdentityStore_CreateFailureBindsNothing(t *testing.T) {
	for name, newStore := range identityFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			_, err := s.Resolve(ctx, "alice@example.org", func(context.Context) (string, error) {
				return "", errors.New("store down")
			})
			require.Error(t, err)

			seq := &sequence{}
			id, err := s.Resolve(ctx, "alice@example.org", seq.create)
			require.NoError(t, err)
			assert.Equal(t, "conv-1", id)
		})
	}
}

func TestIdentityStore_ConcurrentFirstContact(t *testing.T) {
	for name, newStore := range identityFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			seq := &sequence{}

			const workers = 16
			ids := make([]string, workers)
			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					id, err := s.Resolve(ctx, "alice@example.org", seq.create)
					assert.NoError(t, err)
					ids[i] = id
				}()
			}
			wg.Wait()

			for _, id := range ids {
				assert.Equal(t, ids[0], id)
			}
			assert.Equal(t, int64(1), seq.n.Load(), "exactly one conversation per identity")
		})
	}
}

func TestIdentityStore_ForgetOnlyMatchingBinding(t *testing.T) {
	for name, newStore := range identityFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			seq := &sequence{}

			id, err := s.Resolve(ctx, "alice@example.org", seq.create)
			require.NoError(t, err)

			require.NoError(t, s.Forget(ctx, "alice@example.org", "someone-else"))
			again, err := s.Resolve(ctx, "alice@example.org", seq.create)
			require.NoError(t, err)
			assert.Equal(t, id, again)

			require.NoError(t, s.Forget(ctx, "alice@example.org", id))
			fresh, err := s.Resolve(ctx, "alice@example.org", seq.create)
			require.NoError(t, err)
			assert.NotEqual(t, id, fresh)
		})
	}
}

func TestRedisIdentityStore_BindingExpires(t *testing.T) {
	s, mr := newRedisIdentities(t, time.Minute)
	ctx := context.Background()
	seq := &sequence{}

	id, err := s.Resolve(ctx, "alice@example.org", seq.create)
	require.NoError(t, err)
	assert.True(t, mr.Exists(identityKey("alice@example.org")))

	mr.FastForward(2 * time.Minute)

	fresh, err := s.Resolve(ctx, "alice@example.org", seq.create)
	require.NoError(t, err)
	assert.NotEqual(t, id, fresh)
}

func TestRedisIdentityStore_AdoptsExistingBinding(t *testing.T) {
	s, mr := newRedisIdentities(t, 0)
	require.NoError(t, mr.Set(identityKey("alice@example.org"), "conv-from-other-process"))

	id, err := s.Resolve(context.Background(), "alice@example.org", (&sequence{}).create)
	require.NoError(t, err)
	assert.Equal(t, "conv-from-other-process", id)
}

func TestRedisIdentityStore_ProcessesShareOneConversation(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	seq := &sequence{}

	const processes = 4
	stores := make([]*RedisIdentityStore, processes)
	for i := range stores {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		stores[i] = NewRedisIdentityStore(client, time.Hour)
	}

	ids := make([]string, processes*4)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := stores[i%processes].Resolve(ctx, "alice@example.org", func(ctx context.Context) (string, error) {
				time.Sleep(10 * time.Millisecond)
				return seq.create(ctx)
			})
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "conv-1", id)
	}
	assert.Equal(t, int64(1), seq.n.Load(), "losing processes must not create conversations")
}

func TestRedisIdentityStore_CreateFailureReleasesClaim(t *testing.T) {
	s, mr := newRedisIdentities(t, time.Hour)

	_, err := s.Resolve(context.Background(), "alice@example.org", func(context.Context) (string, error) {
		return "", errors.New("store down")
	})
	require.Error(t, err)
	assert.False(t, mr.Exists(identityKey("alice@example.org")))
}

func TestRedisIdentityStore_StaleClaimExpires(t *testing.T) {
	s, mr := newRedisIdentities(t, time.Hour)
	key := identityKey("alice@example.org")
	require.NoError(t, mr.Set(key, claimPrefix+"crashed"))
	mr.SetTTL(key, claimTTL)

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := s.Resolve(context.Background(), "alice@example.org", (&sequence{}).create)
		done <- result{id, err}
	}()

	time.Sleep(5 * claimPoll)
	select {
	case r := <-done:
		t.Fatalf("resolved %q (%v) while another claim was pending", r.id, r.err)
	default:
	}

	mr.FastForward(claimTTL + time.Second)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "conv-1", r.id)
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve did not take over the expired claim")
	}
}
