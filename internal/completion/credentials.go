package completion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soless-ai/soless/internal/config"
)

var ErrInvalidCredential = errors.New("invalid completion credential")

// ValidateCredential checks the shape of an API key for provider without
// contacting the service.
func ValidateCredential(provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: no API key set", ErrInvalidCredential)
	}

	switch provider {
	case config.ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") || len(key) < 20 {
			return fmt.Errorf("%w: anthropic keys start with sk-ant-", ErrInvalidCredential)
		}
	case config.ProviderGemini:
		if !strings.HasPrefix(key, "AIza") || len(key) != 39 {
			return fmt.Errorf("%w: gemini keys start with AIza and are 39 characters", ErrInvalidCredential)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidCredential, provider)
	}
	return nil
}
