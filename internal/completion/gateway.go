// Package completion sends prompts to the configured LLM, or answers with
// canned demo replies when no usable credential is configured.
package completion

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/soless-ai/soless/internal/config"
	"github.com/soless-ai/soless/internal/metrics"
)

// SystemInstruction accompanies every configured completion request.
const SystemInstruction = "You are the SOLess project assistant, providing helpful information about the SOLess project on Solana."

// DemoMarker prefixes every reply produced without a completion service.
const DemoMarker = "[DEMO MODE] "

const DefaultTimeout = 60 * time.Second

var (
	ErrCompletionFailed = errors.New("completion failed")
	ErrNoContent        = errors.New("completion returned no text")
)

type Mode string

const (
	ModeConfigured Mode = "configured"
	ModeDemo       Mode = "demo"
)

// Gateway turns a prompt into a reply.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Mode() Mode
}

// Service is an LLM backend.
type Service interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// New selects the gateway variant once, from the provider and credential.
// A missing or malformed credential yields the demo gateway.
func New(ctx context.Context, cfg config.CompletionConfig) Gateway {
	key := cfg.APIKey()
	if err := ValidateCredential(cfg.Provider, key); err != nil {
		slog.Warn("completion service not configured, using demo mode", "provider", cfg.Provider, "error", err)
		return NewDemo()
	}

	var (
		svc Service
		err error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		svc, err = NewGeminiService(ctx, key, cfg.Model, cfg.MaxTokens)
	default:
		svc = NewAnthropicService(key, cfg.Model, cfg.MaxTokens)
	}
	if err != nil {
		slog.Warn("creating completion client failed, using demo mode", "provider", cfg.Provider, "error", err)
		return NewDemo()
	}

	slog.Info("completion service configured", "provider", cfg.Provider, "model", cfg.Model)
	return NewConfigured(svc, cfg.Timeout)
}

type llmGateway struct {
	svc     Service
	timeout time.Duration
}

// NewConfigured wraps svc with a per-call timeout.
func NewConfigured(svc Service, timeout time.Duration) Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &llmGateway{svc: svc, timeout: timeout}
}

func (g *llmGateway) Mode() Mode { return ModeConfigured }

func (g *llmGateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	reply, err := g.svc.Generate(ctx, SystemInstruction, prompt)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())

	if err == nil && reply == "" {
		err = ErrNoContent
	}
	if err != nil {
		metrics.CompletionsTotal.WithLabelValues(string(ModeConfigured), "error").Inc()
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	metrics.CompletionsTotal.WithLabelValues(string(ModeConfigured), "ok").Inc()
	return reply, nil
}

var demoReplies = []string{
	"I'm running without a connection to my language model right now, so I can't give a real answer. Ask an operator to configure an API key.",
	"SOLess is a project on Solana. Full answers are available once a completion API key is configured.",
	"This is a placeholder reply. Configure a completion provider to get answers grounded in the SOLess knowledge base.",
	"Demo mode is active, so I'm only able to echo canned responses. Your message was received.",
}

type demoGateway struct{}

// NewDemo returns the gateway that never touches the network.
func NewDemo() Gateway {
	return demoGateway{}
}

func (demoGateway) Mode() Mode { return ModeDemo }

func (demoGateway) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	h := fnv.New32a()
	h.Write([]byte(prompt))

	metrics.CompletionsTotal.WithLabelValues(string(ModeDemo), "ok").Inc()
	return DemoMarker + demoReplies[h.Sum32()%uint32(len(demoReplies))], nil
}
