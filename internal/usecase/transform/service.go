// Package transform offloads query rewriting to a bounded worker pool so a
// slow model never stalls the search path. Every failure degrades to the
// original query.
package transform

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/logger"
	"github.com/fraim-dev/contextd/internal/metrics"
)

// Pool offloads a blocking call to a bounded set of workers.
type Pool interface {
	Do(ctx context.Context, fn func() error) error
}

// Service wraps a query transformer with a timeout and a worker pool.
type Service struct {
	transformer domain.QueryTransformer
	pool        Pool
	timeout     time.Duration
}

// New creates a transform service. A nil transformer disables rewriting:
// Transform becomes the identity function.
func New(transformer domain.QueryTransformer, pool Pool, timeout time.Duration) *Service {
	return &Service{transformer: transformer, pool: pool, timeout: timeout}
}

// Transform rewrites a query, returning the original on any failure. The
// model call runs on a pool worker under its own deadline; the caller's
// context still cancels the wait.
func (s *Service) Transform(ctx context.Context, query string) string {
	if s.transformer == nil {
		return query
	}

	start := time.Now()
	defer func() {
		metrics.SearchStageDuration.WithLabelValues("transform").Observe(time.Since(start).Seconds())
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rewritten string
	err := s.pool.Do(callCtx, func() error {
		var innerErr error
		rewritten, innerErr = s.transformer.Transform(callCtx, query)
		return innerErr
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Query transform failed, using original query",
			zap.Error(err))
		return query
	}
	if rewritten == "" {
		return query
	}
	return rewritten
}
