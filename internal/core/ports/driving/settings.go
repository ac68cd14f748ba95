package driving

import "github.com/custodia-labs/cliniq/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings with defaults applied.
	Get() (*domain.AppSettings, error)

	// Value returns the effective value of a single key as text.
	Value(key string) (string, error)

	// Set parses value according to the key's type and persists it.
	Set(key, value string) error

	// Unset removes a stored value so the default applies again.
	Unset(key string) error

	// Keys returns every recognised settings key, sorted.
	Keys() []string

	// Validate checks that current settings are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ChunkerConfig returns the chunker settings as a generic map suitable
	// for the chunker registry.
	ChunkerConfig() map[string]any

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
