package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
	"github.com/custodia-labs/cliniq/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// defaultAnswerTokens bounds the model response.
const defaultAnswerTokens = 1024

// AnswerPromptData is the data the answer prompt template is rendered with.
type AnswerPromptData struct {
	Question  string
	Chunks    []domain.Chunk
	Sentences []domain.RetrievedSentence
}

// ModelAnswer is the JSON object the model is asked to return.
type ModelAnswer struct {
	Answer      string              `json:"answer"`
	Extractions []domain.Extraction `json:"extractions"`
}

// AnswerService retrieves sources, asks the LLM for a cited answer, and
// withholds any answer whose citations fail validation.
type AnswerService struct {
	retrieval driving.RetrievalService
	llm       driven.LLMService
	prompts   driven.PromptStore
	validator driving.CitationValidator
	scorer    driving.ConfidenceScorer

	chunkK    int
	sentenceK int
	maxTokens int
}

// AnswerOption configures an AnswerService.
type AnswerOption func(*AnswerService)

// WithAnswerRetrieval sets the chunk and sentence counts used to build the prompt.
func WithAnswerRetrieval(chunkK, sentenceK int) AnswerOption {
	return func(s *AnswerService) {
		s.chunkK = chunkK
		s.sentenceK = sentenceK
	}
}

// WithMaxTokens bounds the model response length.
func WithMaxTokens(n int) AnswerOption {
	return func(s *AnswerService) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// NewAnswerService creates a new answer service.
// The llm parameter is optional; without it Ask returns domain.ErrLLMUnavailable.
func NewAnswerService(
	retrieval driving.RetrievalService,
	llm driven.LLMService,
	prompts driven.PromptStore,
	validator driving.CitationValidator,
	scorer driving.ConfidenceScorer,
	opts ...AnswerOption,
) *AnswerService {
	s := &AnswerService{
		retrieval: retrieval,
		llm:       llm,
		prompts:   prompts,
		validator: validator,
		scorer:    scorer,
		maxTokens: defaultAnswerTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask retrieves, generates, validates and scores an answer.
func (s *AnswerService) Ask(ctx context.Context, question string, filter domain.ChunkFilter) (*domain.Answer, error) {
	logger.Section("Answer")

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	res, err := s.retrieval.RetrieveText(ctx, question, filter, s.chunkK, s.sentenceK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	answer := &domain.Answer{
		Question:    question,
		Extractions: []domain.Extraction{},
		Retrieval:   res,
	}
	if len(res.Candidates) == 0 {
		logger.Info("No sources matched; answer withheld")
		answer.Withheld = true
		answer.Validation = s.validator.Validate(nil, nil)
		answer.Confidence = s.scorer.Score(nil, nil)
		return answer, nil
	}

	prompt, err := s.prompts.Render(driven.PromptAnswer, AnswerPromptData{
		Question:  question,
		Chunks:    res.CandidateChunks(),
		Sentences: res.Sentences,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	logger.Debug("Prompt: %d bytes, %d chunks, %d sentences", len(prompt), len(res.Candidates), len(res.Sentences))

	raw, err := s.llm.Complete(ctx, prompt, driven.GenerateOptions{
		MaxTokens: s.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	parsed, err := ParseModelAnswer(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Extractions != nil {
		answer.Extractions = parsed.Extractions
	}

	answer.Validation = s.validator.Validate(answer.Extractions, res.CandidateChunks())
	answer.Confidence = s.scorer.Score(res.Sentences, answer.Extractions)

	if answer.Validation.Valid {
		answer.Text = parsed.Answer
	} else {
		answer.Withheld = true
		answer.Draft = parsed.Answer
		logger.Warn("Answer withheld: %d citation error(s)", answer.Validation.ErrorCount)
	}

	logger.Info("Answer: withheld=%t extractions=%d confidence=%.2f (%s)",
		answer.Withheld, len(answer.Extractions), answer.Confidence.Score, answer.Confidence.Label)
	return answer, nil
}

// ParseModelAnswer decodes the model's JSON object, tolerating Markdown
// code fences and prose around it.
func ParseModelAnswer(raw string) (*ModelAnswer, error) {
	text := strings.TrimSpace(raw)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrMalformedResponse)
	}

	var out ModelAnswer
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	return &out, nil
}
