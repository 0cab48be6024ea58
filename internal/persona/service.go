package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/soless-ai/soless/internal/settings"
)

var ErrValidation = errors.New("invalid persona")

// Store holds the single active persona.
type Store interface {
	Get(ctx context.Context) Persona
	Replace(ctx context.Context, p Persona) error
}

// Service keeps the active persona in memory and persists replacements to a
// settings.RecordStore. Readers never block on writers.
type Service struct {
	records  settings.RecordStore
	validate *validator.Validate

	mu      sync.Mutex // serializes Replace
	current atomic.Pointer[Persona]
}

// NewValidator returns a validator with the notblank rule registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("registering notblank validator: %v", err))
	}
	return v
}

// NewService loads the persisted persona, seeding the record store with the
// defaults when none exists yet.
func NewService(ctx context.Context, records settings.RecordStore) (*Service, error) {
	s := &Service{records: records, validate: NewValidator()}

	var p Persona
	found, err := records.Load(ctx, settings.KeyPersona, &p)
	if err != nil {
		return nil, fmt.Errorf("loading persona: %w", err)
	}

	if !found || s.validate.Struct(p) != nil {
		if found {
			slog.Warn("stored persona is invalid, using defaults")
		}
		p = Defaults()
		if err := records.Save(ctx, settings.KeyPersona, p); err != nil {
			return nil, fmt.Errorf("seeding default persona: %w", err)
		}
	}

	s.current.Store(&p)
	return s, nil
}

func (s *Service) Get(_ context.Context) Persona {
	return *s.current.Load()
}

// Replace validates p, persists it and then makes it the active persona.
// On any error the previous persona stays active.
func (s *Service) Replace(ctx context.Context, p Persona) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.records.Save(ctx, settings.KeyPersona, p); err != nil {
		return fmt.Errorf("saving persona: %w", err)
	}
	s.current.Store(&p)

	slog.Info("persona replaced", "name", p.Name)
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
