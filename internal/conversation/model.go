package conversation

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

var (
	ErrNotFound    = errors.New("conversation not found")
	ErrInvalidRole = errors.New("invalid message role")
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store holds conversation histories. Messages are append-only and kept in
// insertion order.
type Store interface {
	Create(ctx context.Context) (string, error)
	// Get returns a snapshot that callers may modify freely.
	Get(ctx context.Context, id string) (*Conversation, error)
	// AppendMessage fails with ErrNotFound for unknown ids and never creates.
	AppendMessage(ctx context.Context, id string, role Role, content string) error
}

// Pinner is implemented by stores that evict live conversations to stay
// within a size bound. A pinned conversation is never evicted; unpin
// releases it. Pinning an unknown id is a no-op.
type Pinner interface {
	Pin(id string) (unpin func())
}
