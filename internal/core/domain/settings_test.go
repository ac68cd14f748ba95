package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider(t *testing.T) {
	tests := []struct {
		provider   AIProvider
		valid      bool
		needsKey   bool
		embeddings bool
	}{
		{provider: AIProviderOllama, valid: true, embeddings: true},
		{provider: AIProviderOpenAI, valid: true, needsKey: true, embeddings: true},
		{provider: AIProviderAnthropic, valid: true, needsKey: true},
		{provider: AIProvider(""), valid: false},
		{provider: AIProvider("cohere"), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.provider.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.provider.IsValid())
			assert.Equal(t, tt.needsKey, tt.provider.RequiresAPIKey())
			assert.Equal(t, tt.embeddings, tt.provider.SupportsEmbeddings())
		})
	}
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.False(t, EmbeddingSettings{}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "k"}.IsConfigured())
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.False(t, LLMSettings{Provider: "nope"}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderAnthropic}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 200, s.Chunker.MinWords)
	assert.Equal(t, 300, s.Chunker.MaxWords)
	assert.Equal(t, 50, s.Chunker.OverlapWords)
	assert.Less(t, s.Retrieval.SentenceK, s.Retrieval.ChunkK)
	assert.True(t, s.Embedding.IsConfigured())
	assert.True(t, s.LLM.IsConfigured())
	assert.False(t, s.Validation.Strict)
	assert.Zero(t, s.Maintenance.Retention, "nothing expires by default")
	assert.Equal(t, 24*time.Hour, s.Maintenance.Interval)
}
