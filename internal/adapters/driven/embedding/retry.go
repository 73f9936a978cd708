// Package embedding provides cross-provider decorators for embedding
// services: retry with exponential backoff and client-side rate limiting.
package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure RetryingService implements the interface.
var _ driven.EmbeddingService = (*RetryingService)(nil)

// Default retry configuration.
const (
	DefaultMaxRetries      = 4
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
	DefaultRequestsPerSec  = 5
)

// RetryConfig controls the retry and rate-limit behaviour.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt
	// (default: 4).
	MaxRetries uint64

	// InitialInterval is the first backoff delay (default: 500ms).
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay (default: 10s).
	MaxInterval time.Duration

	// RequestsPerSecond limits outgoing provider calls. Zero uses the
	// default; a negative value disables limiting.
	RequestsPerSecond float64
}

// RetryingService wraps an embedding service with bounded exponential
// backoff on transient failures and a client-side rate limiter.
// Permanent failures (invalid credentials) are never retried.
type RetryingService struct {
	inner   driven.EmbeddingService
	cfg     RetryConfig
	limiter *rate.Limiter
}

// NewRetryingService wraps inner with retry and rate-limit behaviour.
func NewRetryingService(inner driven.EmbeddingService, cfg RetryConfig) *RetryingService {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}

	var limiter *rate.Limiter
	switch {
	case cfg.RequestsPerSecond == 0:
		limiter = rate.NewLimiter(rate.Limit(DefaultRequestsPerSec), 1)
	case cfg.RequestsPerSecond > 0:
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &RetryingService{
		inner:   inner,
		cfg:     cfg,
		limiter: limiter,
	}
}

// retry runs op with exponential backoff. Transient provider errors are
// retried up to MaxRetries times; everything else aborts immediately.
func (s *RetryingService) retry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.InitialInterval
	policy.MaxInterval = s.cfg.MaxInterval

	attempt := 0
	return backoff.Retry(func() error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrProviderTransient) {
			return backoff.Permanent(err)
		}

		attempt++
		logger.Debug("Transient embedding failure (attempt %d): %v", attempt, err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, s.cfg.MaxRetries), ctx))
}

// Embed generates a vector embedding for the given text.
func (s *RetryingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := s.retry(ctx, func() error {
		var opErr error
		result, opErr = s.inner.Embed(ctx, text)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EmbedBatch generates embeddings for multiple texts. The whole batch is
// retried as a unit so a success is never partial.
func (s *RetryingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := s.retry(ctx, func() error {
		var opErr error
		result, opErr = s.inner.EmbedBatch(ctx, texts)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Dimensions returns the embedding vector size.
func (s *RetryingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (s *RetryingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping validates the underlying service is reachable.
func (s *RetryingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close releases resources held by the underlying service.
func (s *RetryingService) Close() error {
	return s.inner.Close()
}
