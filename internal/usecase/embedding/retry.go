// Package embedding holds embedder decorators applied above the transport
// client: retry with backoff for transient provider failures.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
)

// RetryEmbedder wraps an embedder with bounded retries and exponential
// backoff. Dimension mismatches are configuration errors and never retried;
// everything else from the provider is treated as transient.
type RetryEmbedder struct {
	inner       domain.Embedder
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewRetryEmbedder wraps an embedder with retry behavior.
func NewRetryEmbedder(
	inner domain.Embedder, maxAttempts int, backoff time.Duration, logger *zap.Logger,
) *RetryEmbedder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryEmbedder{
		inner:       inner,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// Embed delegates to the inner embedder, retrying transient failures.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var result domain.EmbeddingResult
	err := r.retry(ctx, func() error {
		var innerErr error
		result, innerErr = r.inner.Embed(ctx, text)
		return innerErr
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return result, nil
}

// BatchEmbed retries the whole batch. Providers either embed all inputs or
// fail the call, so partial retries are not a thing.
func (r *RetryEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var result domain.BatchEmbeddingResult
	err := r.retry(ctx, func() error {
		var innerErr error
		result, innerErr = r.batchInner(ctx, texts)
		return innerErr
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return result, nil
}

func (r *RetryEmbedder) batchInner(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := r.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, r.inner, texts)
}

func (r *RetryEmbedder) retry(ctx context.Context, call func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == r.maxAttempts {
			break
		}

		delay := r.backoff * time.Duration(1<<(attempt-1))
		r.logger.Warn("Embedding attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w: %d attempts: %s", domain.ErrEmbeddingProviderError, r.maxAttempts, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, domain.ErrVectorDimMismatch)
}
