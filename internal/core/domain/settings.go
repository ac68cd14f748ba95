package domain

import "time"

// AIProvider identifies an embedding or language model backend.
type AIProvider string

const (
	// AIProviderOllama is a local Ollama server.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or a compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic Messages API (generation only).
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the provider is known.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true for hosted providers.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// SupportsEmbeddings returns true if the provider can produce embeddings.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

func (p AIProvider) String() string {
	return string(p)
}

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	Provider   AIProvider
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	Timeout    time.Duration

	// RequestsPerSecond limits calls to the provider; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// IsConfigured returns true if enough is set to construct a client.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	return !e.Provider.RequiresAPIKey() || e.APIKey != ""
}

// LLMSettings configures the language model provider.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// IsConfigured returns true if enough is set to construct a client.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	return !l.Provider.RequiresAPIKey() || l.APIKey != ""
}

// ChunkerSettings sizes chunks in words.
type ChunkerSettings struct {
	MinWords         int
	MaxWords         int
	OverlapWords     int
	MaxSentenceChars int

	// Abbreviations extends the built-in list of words whose trailing
	// period does not end a sentence.
	Abbreviations []string
}

// RetrievalSettings configures two-pass retrieval.
type RetrievalSettings struct {
	// ChunkK is the number of pass-1 candidate chunks.
	ChunkK int

	// SentenceK is the number of ranked sentences returned.
	SentenceK int

	// Concurrency bounds parallel sentence embedding in pass 2.
	Concurrency int

	// EmbedTimeout bounds the sentence embedding of one candidate chunk.
	EmbedTimeout time.Duration
}

// ValidationSettings configures the citation validator.
type ValidationSettings struct {
	// Strict promotes whitespace and case warnings to errors.
	Strict bool
}

// StorageSettings locates persisted artifacts.
type StorageSettings struct {
	// DataDir holds the SQLite database. Empty means ~/.cliniq/data.
	DataDir string
}

// LogSettings configures log output.
type LogSettings struct {
	// Format is "text" or "json".
	Format string
}

// MaintenanceSettings configures the background maintenance tasks run
// while the MCP server is up.
type MaintenanceSettings struct {
	// Retention expires artifacts that occurred longer ago than this.
	// Zero keeps everything.
	Retention time.Duration

	// Interval is how often retention runs.
	Interval time.Duration

	// CompactInterval is how often the database is compacted.
	CompactInterval time.Duration
}

// AppSettings is the complete application configuration.
type AppSettings struct {
	Chunker     ChunkerSettings
	Retrieval   RetrievalSettings
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	Validation  ValidationSettings
	Storage     StorageSettings
	Maintenance MaintenanceSettings
	Log         LogSettings
}

// DefaultAppSettings returns the settings used when nothing is configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunker: ChunkerSettings{
			MinWords:         200,
			MaxWords:         300,
			OverlapWords:     50,
			MaxSentenceChars: 1000,
		},
		Retrieval: RetrievalSettings{
			ChunkK:       20,
			SentenceK:    10,
			Concurrency:  4,
			EmbedTimeout: 10 * time.Second,
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    "nomic-embed-text",
			Burst:    1,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    "llama3.2",
		},
		Maintenance: MaintenanceSettings{
			Interval:        24 * time.Hour,
			CompactInterval: 7 * 24 * time.Hour,
		},
		Log: LogSettings{Format: "text"},
	}
}
