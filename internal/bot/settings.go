package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/soless-ai/soless/internal/persona"
	"github.com/soless-ai/soless/internal/settings"
)

var ErrInvalidSettings = errors.New("invalid bot settings")

// Settings is the runtime switch and credential for the messaging bot.
// Secret is plaintext here and sealed in the record store.
type Settings struct {
	Enabled   bool      `json:"enabled"`
	Secret    string    `json:"secret,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingsView is what the API exposes; the secret never leaves the process.
type SettingsView struct {
	Enabled   bool      `json:"enabled"`
	SecretSet bool      `json:"secret_set"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// SettingsUpdate carries a partial change. Nil fields are left untouched and
// an empty Secret clears it.
type SettingsUpdate struct {
	Enabled *bool   `json:"enabled"`
	Secret  *string `json:"secret" validate:"omitempty,max=512"`
}

type SettingsService struct {
	records  settings.RecordStore
	sealer   settings.Sealer
	validate *validator.Validate
	now      func() time.Time

	mu      sync.Mutex // serializes Update
	current atomic.Pointer[Settings]
}

// NewSettingsService loads persisted bot settings. Without a record the bot
// starts enabled with no secret.
func NewSettingsService(ctx context.Context, records settings.RecordStore, sealer settings.Sealer) (*SettingsService, error) {
	s := &SettingsService{
		records:  records,
		sealer:   sealer,
		validate: persona.NewValidator(),
		now:      time.Now,
	}

	cur := Settings{Enabled: true}
	var stored Settings
	found, err := records.Load(ctx, settings.KeyBotSettings, &stored)
	if err != nil {
		return nil, fmt.Errorf("loading bot settings: %w", err)
	}
	if found {
		cur = stored
		if stored.Secret != "" {
			cur.Secret, err = sealer.Open(stored.Secret)
			if err != nil {
				slog.Warn("bot secret could not be opened, ignoring it", "error", err)
				cur.Secret = ""
			}
		}
	}

	s.current.Store(&cur)
	return s, nil
}

func (s *SettingsService) Get() Settings {
	return *s.current.Load()
}

func (s *SettingsService) Enabled() bool {
	return s.current.Load().Enabled
}

func (s *SettingsService) View() SettingsView {
	cur := s.Get()
	return SettingsView{Enabled: cur.Enabled, SecretSet: cur.Secret != "", UpdatedAt: cur.UpdatedAt}
}

// Update applies u, persists the result with the secret sealed and then
// makes it current.
func (s *SettingsService) Update(ctx context.Context, u SettingsUpdate) (SettingsView, error) {
	if err := s.validate.Struct(u); err != nil {
		return SettingsView{}, fmt.Errorf("%w: secret must be at most 512 characters", ErrInvalidSettings)
	}
	if u.Enabled == nil && u.Secret == nil {
		return SettingsView{}, fmt.Errorf("%w: nothing to update", ErrInvalidSettings)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Get()
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.Secret != nil {
		next.Secret = *u.Secret
	}
	next.UpdatedAt = s.now().UTC()

	record := next
	if record.Secret != "" {
		sealed, err := s.sealer.Seal(record.Secret)
		if err != nil {
			return SettingsView{}, fmt.Errorf("sealing bot secret: %w", err)
		}
		record.Secret = sealed
	}
	if err := s.records.Save(ctx, settings.KeyBotSettings, record); err != nil {
		return SettingsView{}, fmt.Errorf("saving bot settings: %w", err)
	}

	s.current.Store(&next)
	slog.Info("bot settings updated", "enabled", next.Enabled, "secret_set", next.Secret != "")
	return s.View(), nil
}
