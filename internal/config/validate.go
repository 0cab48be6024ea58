package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for problems that would prevent startup.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Encryption key is optional; when set it must be 64 hex chars (32 bytes)
	if c.Encryption.Key != "" {
		if len(c.Encryption.Key) != 64 {
			errs = append(errs, "ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes)")
		} else if _, err := hex.DecodeString(c.Encryption.Key); err != nil {
			errs = append(errs, "ENCRYPTION_KEY must be valid hex")
		}
	}

	switch c.Completion.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		errs = append(errs, fmt.Sprintf("COMPLETION_PROVIDER must be anthropic or gemini, got %q", c.Completion.Provider))
	}
	if c.Completion.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("COMPLETION_MAX_TOKENS must be positive, got %d", c.Completion.MaxTokens))
	}
	if c.Completion.Timeout <= 0 {
		errs = append(errs, "COMPLETION_TIMEOUT must be positive")
	}

	switch c.Documents.Backend {
	case BackendFile, BackendPostgres:
	default:
		errs = append(errs, fmt.Sprintf("DOCUMENTS_BACKEND must be file or postgres, got %q", c.Documents.Backend))
	}
	if c.Documents.MaxUploadBytes < 1 {
		errs = append(errs, "DOCUMENTS_MAX_UPLOAD_BYTES must be positive")
	}

	switch c.Conversations.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Sprintf("CONVERSATIONS_BACKEND must be memory or redis, got %q", c.Conversations.Backend))
	}
	if c.Conversations.TTL <= 0 {
		errs = append(errs, "CONVERSATIONS_TTL must be positive")
	}
	if c.Conversations.Max < 1 {
		errs = append(errs, fmt.Sprintf("CONVERSATIONS_MAX must be positive, got %d", c.Conversations.Max))
	}

	switch c.Settings.Backend {
	case BackendFile, BackendPostgres:
	default:
		errs = append(errs, fmt.Sprintf("SETTINGS_BACKEND must be file or postgres, got %q", c.Settings.Backend))
	}

	if c.UsesPostgres() && c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required when a postgres backend is selected")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.UsesPostgres() && (c.DB.Port < 1 || c.DB.Port > 65535) {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.UsesRedis() && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if c.XMPP.Enabled {
		if c.NATS.URL == "" {
			errs = append(errs, "NATS_URL is required when XMPP_ENABLED is set")
		}
		if c.XMPP.ComponentSecret == "" {
			errs = append(errs, "XMPP_COMPONENT_SECRET is required when XMPP_ENABLED is set")
		}
		if c.XMPP.ComponentPort < 1 || c.XMPP.ComponentPort > 65535 {
			errs = append(errs, fmt.Sprintf("XMPP_COMPONENT_PORT must be 1-65535, got %d", c.XMPP.ComponentPort))
		}
	}

	// Missing credentials only downgrade the gateway to demo mode
	if c.Completion.APIKey() == "" {
		slog.Warn("no completion API key configured, replies will use demo mode", "provider", c.Completion.Provider)
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
