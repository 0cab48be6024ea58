// Package chat runs conversation turns: it records the user's message, builds
// the prompt, asks the completion gateway and records the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soless-ai/soless/internal/completion"
	"github.com/soless-ai/soless/internal/conversation"
	"github.com/soless-ai/soless/internal/knowledge"
	"github.com/soless-ai/soless/internal/persona"
	"github.com/soless-ai/soless/internal/prompt"
)

// ApologyText is what channels show when a turn fails.
const ApologyText = "Sorry, I couldn't process your message. Please try again later."

var ErrEmptyMessage = errors.New("message is required")

type Service struct {
	conversations conversation.Store
	knowledge     knowledge.Builder
	persona       persona.Store
	gateway       completion.Gateway
	locks         *keyedMutex
}

func NewService(conversations conversation.Store, kb knowledge.Builder, personas persona.Store, gateway completion.Gateway) *Service {
	return &Service{
		conversations: conversations,
		knowledge:     kb,
		persona:       personas,
		gateway:       gateway,
		locks:         newKeyedMutex(),
	}
}

func (s *Service) CreateConversation(ctx context.Context) (string, error) {
	id, err := s.conversations.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	slog.Debug("conversation created", "id", id)
	return id, nil
}

func (s *Service) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.conversations.Get(ctx, id)
}

// Mode reports whether replies come from a real completion service.
func (s *Service) Mode() completion.Mode {
	return s.gateway.Mode()
}

// SendMessage runs one turn and returns the assistant's reply. Turns on the
// same conversation run one at a time. When the completion fails the user's
// message stays recorded without a reply.
func (s *Service) SendMessage(ctx context.Context, id, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return "", fmt.Errorf("waiting for conversation %s: %w", id, err)
	}
	defer unlock()

	// Keep a size-bounded store from evicting the conversation mid-turn.
	if p, ok := s.conversations.(conversation.Pinner); ok {
		defer p.Pin(id)()
	}

	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return "", err
	}
	history := conv.Messages

	if err := s.conversations.AppendMessage(ctx, id, conversation.RoleUser, text); err != nil {
		return "", fmt.Errorf("recording user message: %w", err)
	}

	blob := s.knowledge.Build(ctx)
	p := prompt.Build(text, history, s.persona.Get(ctx), blob)

	reply, err := s.gateway.Complete(ctx, p)
	if err != nil {
		return "", err
	}

	if err := s.conversations.AppendMessage(ctx, id, conversation.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("recording assistant reply: %w", err)
	}
	return reply, nil
}
