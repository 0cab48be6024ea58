package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/soless-ai/soless/internal/metrics"
)

type memoryEntry struct {
	conv       Conversation
	lastActive time.Time
	pins       int
}

// MemoryStore keeps conversations in process memory. Each conversation
// expires after ttl without activity, and when max is reached the least
// recently active unpinned conversation is evicted. Zero disables either
// bound. While every conversation is pinned the store may exceed max.
type MemoryStore struct {
	mu    sync.Mutex
	items *cache.Cache
	ttl   time.Duration
	max   int
}

func NewMemoryStore(ttl time.Duration, max int) *MemoryStore {
	exp := ttl
	if exp <= 0 {
		exp = cache.NoExpiration
	}
	// No janitor goroutine; expired entries are purged on Create.
	return &MemoryStore{items: cache.New(exp, 0), ttl: exp, max: max}
}

func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.DeleteExpired()
	if s.max > 0 && s.items.ItemCount() >= s.max {
		s.evictOldest()
	}

	s.items.Set(id, &memoryEntry{
		conv:       Conversation{ID: id, Messages: []Message{}, CreatedAt: now},
		lastActive: now,
	}, s.ttl)

	metrics.ConversationsCreatedTotal.Inc()
	return id, nil
}

func (s *MemoryStore) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, item := range s.items.Items() {
		e := item.Object.(*memoryEntry)
		if e.pins > 0 {
			continue
		}
		if oldestID == "" || e.lastActive.Before(oldest) {
			oldestID, oldest = id, e.lastActive
		}
	}
	if oldestID == "" {
		slog.Debug("all conversations pinned, exceeding max", "max", s.max)
		return
	}
	s.items.Delete(oldestID)
	slog.Debug("evicted least recently active conversation", "id", oldestID)
}

// Pin keeps id from being evicted until the returned func is called. Idle
// expiry still applies.
func (s *MemoryStore) Pin(id string) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(id)
	if !ok {
		return func() {}
	}
	e := v.(*memoryEntry)
	e.pins++

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			e.pins--
		})
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := v.(*memoryEntry)

	snapshot := e.conv
	snapshot.Messages = append([]Message(nil), e.conv.Messages...)
	if snapshot.Messages == nil {
		snapshot.Messages = []Message{}
	}
	return &snapshot, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, id string, role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := v.(*memoryEntry)

	now := time.Now().UTC()
	e.conv.Messages = append(e.conv.Messages, Message{Role: role, Content: content, Timestamp: now})
	e.lastActive = now

	// Re-set to slide the expiry window
	s.items.Set(id, e, s.ttl)
	return nil
}

// Len reports the number of live conversations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.DeleteExpired()
	return s.items.ItemCount()
}
