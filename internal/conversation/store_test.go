package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

// Behaviour shared by every Store implementation.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore(time.Hour, 100) },
		"redis": func(t *testing.T) Store {
			s, _ := setupMiniredis(t, time.Hour)
			return s
		},
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			before := time.Now().UTC().Add(-time.Second)
			id, err := s.Create(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, id)

			conv, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, conv.ID)
			assert.NotNil(t, conv.Messages)
			assert.Empty(t, conv.Messages)
			assert.True(t, conv.CreatedAt.After(before))
		})
	}
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			id, err := s.Create(ctx)
			require.NoError(t, err)

			const n = 10
			for i := 0; i < n; i++ {
				role := RoleUser
				if i%2 == 1 {
					role = RoleAssistant
				}
				require.NoError(t, s.AppendMessage(ctx, id, role, fmt.Sprintf("msg-%d", i)))
			}

			conv, err := s.Get(ctx, id)
			require.NoError(t, err)
			require.Len(t, conv.Messages, n)
			for i, m := range conv.Messages {
				assert.Equal(t, fmt.Sprintf("msg-%d", i), m.Content)
				assert.False(t, m.Timestamp.IsZero())
			}
			assert.Equal(t, RoleUser, conv.Messages[0].Role)
			assert.Equal(t, RoleAssistant, conv.Messages[1].Role)
		})
	}
}

func TestStore_AppendUnknownID(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			err := s.AppendMessage(ctx, "does-not-exist", RoleUser, "hello")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.Get(ctx, "does-not-exist")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ConsecutiveSameRoleAllowed(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			id, err := s.Create(ctx)
			require.NoError(t, err)

			require.NoError(t, s.AppendMessage(ctx, id, RoleUser, "first"))
			require.NoError(t, s.AppendMessage(ctx, id, RoleUser, "second"))

			conv, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Len(t, conv.Messages, 2)
		})
	}
}

func TestStore_InvalidRole(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			id, err := s.Create(ctx)
			require.NoError(t, err)

			assert.ErrorIs(t, s.AppendMessage(ctx, id, "system", "x"), ErrInvalidRole)
		})
	}
}

func TestStore_ConcurrentAppendsBothLand(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			id, err := s.Create(ctx)
			require.NoError(t, err)
			require.NoError(t, s.AppendMessage(ctx, id, RoleUser, "seed"))

			var wg sync.WaitGroup
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.AppendMessage(ctx, id, RoleUser, fmt.Sprintf("c-%d", i)))
				}(i)
			}
			wg.Wait()

			conv, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Len(t, conv.Messages, 3)
		})
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(time.Hour, 0)
	ctx := context.Background()
	id, err := s.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, id, RoleUser, "original"))

	conv, err := s.Get(ctx, id)
	require.NoError(t, err)
	conv.Messages[0].Content = "mutated"
	conv.Messages = append(conv.Messages, Message{Role: RoleAssistant, Content: "extra"})

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, again.Messages, 1)
	assert.Equal(t, "original", again.Messages[0].Content)
}

func TestMemoryStore_ExpiresIdleConversations(t *testing.T) {
	s := NewMemoryStore(80*time.Millisecond, 0)
	ctx := context.Background()

	idle, err := s.Create(ctx)
	require.NoError(t, err)
	active, err := s.Create(ctx)
	require.NoError(t, err)

	// Keep one conversation active across the ttl boundary
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		require.NoError(t, s.AppendMessage(ctx, active, RoleUser, "ping"))
	}

	_, err = s.Get(ctx, idle)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, active)
	assert.NoError(t, err)
}

func TestMemoryStore_EvictsLeastRecentlyActive(t *testing.T) {
	s := NewMemoryStore(0, 2)
	ctx := context.Background()

	first, err := s.Create(ctx)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.Create(ctx)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	// Touch the first so the second becomes the eviction candidate
	require.NoError(t, s.AppendMessage(ctx, first, RoleUser, "still here"))
	time.Sleep(2 * time.Millisecond)

	third, err := s.Create(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	_, err = s.Get(ctx, first)
	assert.NoError(t, err)
	_, err = s.Get(ctx, second)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, third)
	assert.NoError(t, err)
}

func TestMemoryStore_PinnedConversationSurvivesEviction(t *testing.T) {
	s := NewMemoryStore(0, 1)
	ctx := context.Background()

	busy, err := s.Create(ctx)
	require.NoError(t, err)
	unpin := s.Pin(busy)

	other, err := s.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len(), "a pinned conversation lets the store run over max")
	require.NoError(t, s.AppendMessage(ctx, busy, RoleAssistant, "reply lands"))

	unpin()
	unpin()
	third, err := s.Create(ctx)
	require.NoError(t, err)

	_, err = s.Get(ctx, other)
	assert.ErrorIs(t, err, ErrNotFound, "oldest unpinned conversation goes first")
	for _, id := range []string{busy, third} {
		_, err = s.Get(ctx, id)
		assert.NoError(t, err)
	}
}

func TestMemoryStore_PinUnknownIsNoop(t *testing.T) {
	s := NewMemoryStore(0, 1)
	s.Pin("missing")()
	assert.Equal(t, 0, s.Len())
}

func TestRedisStore_TTLSlidesOnAppend(t *testing.T) {
	s, mr := setupMiniredis(t, time.Minute)
	ctx := context.Background()

	id, err := s.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(50 * time.Second)
	require.NoError(t, s.AppendMessage(ctx, id, RoleUser, "hello"))

	mr.FastForward(50 * time.Second)
	conv, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1)

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_AppendUnknownCreatesNothing(t *testing.T) {
	s, mr := setupMiniredis(t, time.Minute)

	err := s.AppendMessage(context.Background(), "ghost", RoleUser, "boo")
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(messagesKey("ghost")))
	assert.False(t, mr.Exists(metaKey("ghost")))
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := setupMiniredis(t, time.Minute)
	mr.Close()

	_, err := s.Create(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
