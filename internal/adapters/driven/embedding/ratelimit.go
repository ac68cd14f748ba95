// Package embedding holds provider-independent wrappers for embedding services.
package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// Ensure RateLimitedService implements the interface.
var _ driven.EmbeddingService = (*RateLimitedService)(nil)

// DefaultBackoff is how long calls pause after a provider answers 429.
const DefaultBackoff = 30 * time.Second

// RateLimitConfig holds rate limiting configuration for a provider.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables limiting.
	RequestsPerSecond float64

	// BurstSize is the maximum burst size (minimum 1).
	BurstSize int

	// Backoff is the pause after a rate limit error (default: 30s).
	Backoff time.Duration
}

// RateLimitedService wraps an EmbeddingService with a token bucket.
// Each Embed or EmbedBatch call consumes one token. Failed calls are never
// retried; a rate limit error only delays the calls that follow it.
type RateLimitedService struct {
	driven.EmbeddingService

	mu      sync.Mutex
	limiter *rate.Limiter
	backoff time.Duration
	retryAt time.Time
	now     func() time.Time
}

// NewRateLimitedService wraps svc with the given limits.
func NewRateLimitedService(svc driven.EmbeddingService, cfg RateLimitConfig) *RateLimitedService {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.BurstSize < 1 {
		cfg.BurstSize = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	return &RateLimitedService{
		EmbeddingService: svc,
		limiter:          rate.NewLimiter(limit, cfg.BurstSize),
		backoff:          cfg.Backoff,
		now:              time.Now,
	}
}

// Embed waits for a token, then embeds one text.
func (s *RateLimitedService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	vec, err := s.EmbeddingService.Embed(ctx, text)
	s.observe(err)
	return vec, err
}

// EmbedBatch waits for a token, then embeds the batch in one call.
func (s *RateLimitedService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	vecs, err := s.EmbeddingService.EmbedBatch(ctx, texts)
	s.observe(err)
	return vecs, err
}

// wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by a previous rate limit error.
func (s *RateLimitedService) wait(ctx context.Context) error {
	s.mu.Lock()
	retryAt := s.retryAt
	s.mu.Unlock()

	if d := retryAt.Sub(s.now()); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return s.limiter.Wait(ctx)
}

func (s *RateLimitedService) observe(err error) {
	if !errors.Is(err, domain.ErrRateLimited) {
		return
	}
	s.mu.Lock()
	s.retryAt = s.now().Add(s.backoff)
	s.mu.Unlock()
}
