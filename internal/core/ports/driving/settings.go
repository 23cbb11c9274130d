package driving

import "github.com/custodia-labs/shopbot/internal/core/domain"

// SettingsService maps stored configuration onto domain.AppSettings.
type SettingsService interface {
	// Get returns defaults overlaid with stored values, validated.
	Get() (*domain.AppSettings, error)

	// Set parses value for a known key, checks the resulting settings and
	// persists it.
	Set(key, value string) error

	// Unset removes a stored value so the default applies again.
	Unset(key string) error

	// Value returns the effective value of a known key for display.
	// Secrets are masked.
	Value(key string) (string, error)

	// Keys returns every known key in display order.
	Keys() []string

	// Path returns where settings are persisted.
	Path() string

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig pings the configured LLM provider.
	ValidateLLMConfig() error
}
