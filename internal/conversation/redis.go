package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/soless-ai/soless/internal/metrics"
)

// appendScript pushes a message only when the conversation exists and slides
// both keys' expiry. Returns -1 for unknown conversations.
var appendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local n = redis.call('RPUSH', KEYS[2], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return n
`)

// RedisStore keeps conversations in Redis so several API processes can share
// them: a meta hash per conversation plus a list of JSON-encoded messages.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func metaKey(id string) string {
	return fmt.Sprintf("conversation:{%s}:meta", id)
}

func messagesKey(id string) string {
	return fmt.Sprintf("conversation:{%s}:messages", id)
}

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	key := metaKey(id)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "created_at", time.Now().UTC().Format(time.RFC3339Nano))
	if s.ttl > 0 {
		pipe.PExpire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("creating conversation %s: %w", id, err)
	}

	metrics.ConversationsCreatedTotal.Inc()
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Conversation, error) {
	pipe := s.client.Pipeline()
	createdCmd := pipe.HGet(ctx, metaKey(id), "created_at")
	msgsCmd := pipe.LRange(ctx, messagesKey(id), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}

	created, err := createdCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}

	conv := &Conversation{ID: id, Messages: []Message{}}
	if conv.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parsing created_at for %s: %w", id, err)
	}

	for _, v := range msgsCmd.Val() {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decoding message in %s: %w", id, err)
		}
		conv.Messages = append(conv.Messages, m)
	}
	return conv, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, id string, role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	data, err := json.Marshal(Message{Role: role, Content: content, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	n, err := appendScript.Run(ctx, s.client,
		[]string{metaKey(id), messagesKey(id)},
		string(data), s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("appending to %s: %w", id, err)
	}
	if n < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
