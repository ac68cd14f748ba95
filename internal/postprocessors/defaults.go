package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/postprocessors/chunker"
	"github.com/custodia-labs/cliniq/internal/postprocessors/sentences"
)

// DefaultChunker is the name of the built-in sentence-aligned chunker.
const DefaultChunker = "sentence"

// RegisterDefaults registers all built-in chunkers with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(DefaultChunker, buildSentenceChunker)
}

// NewDetector builds the sentence detector described by cfg. The chunker
// and the query-time segmenter must both be built from the same config.
func NewDetector(cfg map[string]any) *sentences.Detector {
	var opts []sentences.Option
	if n := getIntFromConfig(cfg, "max_sentence_chars"); n > 0 {
		opts = append(opts, sentences.WithMaxChars(n))
	}
	if words := getStringsFromConfig(cfg, "abbreviations"); len(words) > 0 {
		opts = append(opts, sentences.WithAbbreviations(words...))
	}
	return sentences.NewDetector(opts...)
}

// buildSentenceChunker creates the sentence chunker from generic config.
// Supported config keys:
//   - min_words, max_words (int): target chunk size (default: 200-300)
//   - overlap_words (int): minimum words shared with the previous chunk (default: 50)
//   - max_sentence_chars (int): longest sentence before subdivision (default: 1000)
//   - abbreviations ([]string): extra words whose period does not end a sentence
func buildSentenceChunker(cfg map[string]any) (driven.Chunker, error) {
	opts := []chunker.Option{chunker.WithDetector(NewDetector(cfg))}

	minWords := getIntFromConfig(cfg, "min_words")
	maxWords := getIntFromConfig(cfg, "max_words")
	if minWords > 0 && maxWords > 0 && minWords > maxWords {
		return nil, fmt.Errorf("%w: min_words %d exceeds max_words %d", domain.ErrInvalidInput, minWords, maxWords)
	}
	if minWords > 0 {
		opts = append(opts, chunker.WithMinWords(minWords))
	}
	if maxWords > 0 {
		opts = append(opts, chunker.WithMaxWords(maxWords))
	}
	if _, ok := cfg["overlap_words"]; ok {
		opts = append(opts, chunker.WithOverlapWords(getIntFromConfig(cfg, "overlap_words")))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func getStringsFromConfig(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
