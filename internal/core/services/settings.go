package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkerMinWords      = "chunker.min_words"
	keyChunkerMaxWords      = "chunker.max_words"
	keyChunkerOverlap       = "chunker.overlap_words"
	keyChunkerSentenceChars = "chunker.max_sentence_chars"
	keyChunkerAbbreviations = "chunker.abbreviations"

	keyRetrievalChunkK       = "retrieval.chunk_k"
	keyRetrievalSentenceK    = "retrieval.sentence_k"
	keyRetrievalConcurrency  = "retrieval.concurrency"
	keyRetrievalEmbedTimeout = "retrieval.embed_timeout"

	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyEmbedTimeout    = "embedding.timeout"
	keyEmbedRPS        = "embedding.requests_per_second"
	keyEmbedBurst      = "embedding.burst"

	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"
	keyLLMTimeout  = "llm.timeout"

	keyValidationStrict = "validation.strict"
	keyStorageDataDir   = "storage.data_dir"
	keyLogFormat        = "log.format"

	keyMaintenanceRetention = "maintenance.retention"
	keyMaintenanceInterval  = "maintenance.interval"
	keyMaintenanceCompact   = "maintenance.compact_interval"
)

// valueKind is the type a settings key parses to.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindProvider
	kindList
)

var settingKinds = map[string]valueKind{
	keyChunkerMinWords:       kindInt,
	keyChunkerMaxWords:       kindInt,
	keyChunkerOverlap:        kindInt,
	keyChunkerSentenceChars:  kindInt,
	keyChunkerAbbreviations:  kindList,
	keyRetrievalChunkK:       kindInt,
	keyRetrievalSentenceK:    kindInt,
	keyRetrievalConcurrency:  kindInt,
	keyRetrievalEmbedTimeout: kindDuration,
	keyEmbedProvider:         kindProvider,
	keyEmbedModel:            kindString,
	keyEmbedBaseURL:          kindString,
	keyEmbedAPIKey:           kindString,
	keyEmbedDimensions:       kindInt,
	keyEmbedTimeout:          kindDuration,
	keyEmbedRPS:              kindFloat,
	keyEmbedBurst:            kindInt,
	keyLLMProvider:           kindProvider,
	keyLLMModel:              kindString,
	keyLLMBaseURL:            kindString,
	keyLLMAPIKey:             kindString,
	keyLLMTimeout:            kindDuration,
	keyValidationStrict:      kindBool,
	keyStorageDataDir:        kindString,
	keyLogFormat:             kindString,
	keyMaintenanceRetention:  kindDuration,
	keyMaintenanceInterval:   kindDuration,
	keyMaintenanceCompact:    kindDuration,
}

// apiKeyEnv names the conventional environment variable for each hosted provider.
var apiKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Chunker: domain.ChunkerSettings{
			MinWords:         s.getInt(keyChunkerMinWords, defaults.Chunker.MinWords),
			MaxWords:         s.getInt(keyChunkerMaxWords, defaults.Chunker.MaxWords),
			OverlapWords:     s.getInt(keyChunkerOverlap, defaults.Chunker.OverlapWords),
			MaxSentenceChars: s.getInt(keyChunkerSentenceChars, defaults.Chunker.MaxSentenceChars),
			Abbreviations:    s.configStore.GetStringSlice(keyChunkerAbbreviations),
		},
		Retrieval: domain.RetrievalSettings{
			ChunkK:       s.getInt(keyRetrievalChunkK, defaults.Retrieval.ChunkK),
			SentenceK:    s.getInt(keyRetrievalSentenceK, defaults.Retrieval.SentenceK),
			Concurrency:  s.getInt(keyRetrievalConcurrency, defaults.Retrieval.Concurrency),
			EmbedTimeout: s.getDuration(keyRetrievalEmbedTimeout, defaults.Retrieval.EmbedTimeout),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.configStore.GetInt(keyEmbedDimensions),
			Timeout:           s.configStore.GetDuration(keyEmbedTimeout),
			RequestsPerSecond: s.configStore.GetFloat(keyEmbedRPS),
			Burst:             s.getInt(keyEmbedBurst, defaults.Embedding.Burst),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
			Timeout:  s.configStore.GetDuration(keyLLMTimeout),
		},
		Validation: domain.ValidationSettings{
			Strict: s.getBool(keyValidationStrict, defaults.Validation.Strict),
		},
		Storage: domain.StorageSettings{
			DataDir: s.getString(keyStorageDataDir, defaults.Storage.DataDir),
		},
		Maintenance: domain.MaintenanceSettings{
			Retention:       s.configStore.GetDuration(keyMaintenanceRetention),
			Interval:        s.getDuration(keyMaintenanceInterval, defaults.Maintenance.Interval),
			CompactInterval: s.getDuration(keyMaintenanceCompact, defaults.Maintenance.CompactInterval),
		},
		Log: domain.LogSettings{
			Format: s.getString(keyLogFormat, defaults.Log.Format),
		},
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envAPIKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envAPIKey(settings.LLM.Provider)
	}

	return settings, nil
}

// Value returns the effective value of key, defaults included, as text.
// API keys are masked.
func (s *SettingsService) Value(key string) (string, error) {
	kind, ok := settingKinds[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	settings, err := s.Get()
	if err != nil {
		return "", err
	}

	var v any
	switch key {
	case keyChunkerMinWords:
		v = settings.Chunker.MinWords
	case keyChunkerMaxWords:
		v = settings.Chunker.MaxWords
	case keyChunkerOverlap:
		v = settings.Chunker.OverlapWords
	case keyChunkerSentenceChars:
		v = settings.Chunker.MaxSentenceChars
	case keyChunkerAbbreviations:
		v = settings.Chunker.Abbreviations
	case keyRetrievalChunkK:
		v = settings.Retrieval.ChunkK
	case keyRetrievalSentenceK:
		v = settings.Retrieval.SentenceK
	case keyRetrievalConcurrency:
		v = settings.Retrieval.Concurrency
	case keyRetrievalEmbedTimeout:
		v = settings.Retrieval.EmbedTimeout
	case keyEmbedProvider:
		v = settings.Embedding.Provider
	case keyEmbedModel:
		v = settings.Embedding.Model
	case keyEmbedBaseURL:
		v = settings.Embedding.BaseURL
	case keyEmbedAPIKey:
		v = mask(settings.Embedding.APIKey)
	case keyEmbedDimensions:
		v = settings.Embedding.Dimensions
	case keyEmbedTimeout:
		v = settings.Embedding.Timeout
	case keyEmbedRPS:
		v = settings.Embedding.RequestsPerSecond
	case keyEmbedBurst:
		v = settings.Embedding.Burst
	case keyLLMProvider:
		v = settings.LLM.Provider
	case keyLLMModel:
		v = settings.LLM.Model
	case keyLLMBaseURL:
		v = settings.LLM.BaseURL
	case keyLLMAPIKey:
		v = mask(settings.LLM.APIKey)
	case keyLLMTimeout:
		v = settings.LLM.Timeout
	case keyValidationStrict:
		v = settings.Validation.Strict
	case keyStorageDataDir:
		v = settings.Storage.DataDir
	case keyLogFormat:
		v = settings.Log.Format
	case keyMaintenanceRetention:
		v = settings.Maintenance.Retention
	case keyMaintenanceInterval:
		v = settings.Maintenance.Interval
	case keyMaintenanceCompact:
		v = settings.Maintenance.CompactInterval
	}

	if kind == kindList {
		list, _ := v.([]string)
		return strings.Join(list, ","), nil
	}
	return fmt.Sprint(v), nil
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseValue(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if key == keyLogFormat && value != "text" && value != "json" {
		return fmt.Errorf("%w: %s must be text or json", domain.ErrInvalidInput, key)
	}
	if key == keyEmbedProvider && !domain.AIProvider(value).SupportsEmbeddings() {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, value)
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Unset removes a stored value so the default applies again.
func (s *SettingsService) Unset(key string) error {
	if _, ok := settingKinds[key]; !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	return s.configStore.Unset(key)
}

// Keys returns every recognised settings key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	c := settings.Chunker
	switch {
	case c.MinWords <= 0:
		return invalidSetting(keyChunkerMinWords, "must be positive")
	case c.MaxWords < c.MinWords:
		return invalidSetting(keyChunkerMaxWords, "must be at least chunker.min_words")
	case c.OverlapWords < 0 || c.OverlapWords >= c.MinWords:
		return invalidSetting(keyChunkerOverlap, "must be between 0 and chunker.min_words")
	case c.MaxSentenceChars <= 0:
		return invalidSetting(keyChunkerSentenceChars, "must be positive")
	}

	r := settings.Retrieval
	switch {
	case r.ChunkK <= 0:
		return invalidSetting(keyRetrievalChunkK, "must be positive")
	case r.SentenceK <= 0:
		return invalidSetting(keyRetrievalSentenceK, "must be positive")
	case r.Concurrency <= 0:
		return invalidSetting(keyRetrievalConcurrency, "must be positive")
	case r.EmbedTimeout <= 0:
		return invalidSetting(keyRetrievalEmbedTimeout, "must be positive")
	}

	if !settings.Embedding.Provider.SupportsEmbeddings() {
		return invalidSetting(keyEmbedProvider, "provider does not support embeddings")
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %s requires an API key",
			domain.ErrInvalidInput, settings.Embedding.Provider)
	}
	if settings.Embedding.RequestsPerSecond < 0 {
		return invalidSetting(keyEmbedRPS, "must not be negative")
	}

	if settings.Maintenance.Retention < 0 {
		return invalidSetting(keyMaintenanceRetention, "must not be negative")
	}

	if format := settings.Log.Format; format != "text" && format != "json" {
		return invalidSetting(keyLogFormat, "must be text or json")
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ChunkerConfig returns the chunker settings as a generic map.
func (s *SettingsService) ChunkerConfig() map[string]any {
	settings, err := s.Get()
	if err != nil {
		return nil
	}
	cfg := map[string]any{
		"min_words":          settings.Chunker.MinWords,
		"max_words":          settings.Chunker.MaxWords,
		"overlap_words":      settings.Chunker.OverlapWords,
		"max_sentence_chars": settings.Chunker.MaxSentenceChars,
	}
	if len(settings.Chunker.Abbreviations) > 0 {
		cfg["abbreviations"] = settings.Chunker.Abbreviations
	}
	return cfg
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) envAPIKey(provider domain.AIProvider) string {
	name, ok := apiKeyEnv[provider]
	if !ok {
		return ""
	}
	return s.getenv(name)
}

func parseValue(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("duration %s is negative", value)
		}
		return value, nil
	case kindProvider:
		if !domain.AIProvider(value).IsValid() {
			return nil, fmt.Errorf("unknown provider %q", value)
		}
		return value, nil
	case kindList:
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

func invalidSetting(key, reason string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrInvalidInput, key, reason)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
