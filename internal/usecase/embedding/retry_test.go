package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
)

type flakyEmbedder struct {
	failures int
	calls    int
	err      error
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.calls <= f.failures {
		err := f.err
		if err == nil {
			err = errors.New("connection reset")
		}
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1}, TotalTokens: 3}, nil
}

func TestRetryEmbedder_SucceedsAfterTransientFailure(t *testing.T) {
	inner := &flakyEmbedder{failures: 2}
	r := NewRetryEmbedder(inner, 3, time.Millisecond, zap.NewNop())

	result, err := r.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
	if len(result.Embedding) != 1 {
		t.Error("expected result from final attempt")
	}
}

func TestRetryEmbedder_ExhaustedAttempts(t *testing.T) {
	inner := &flakyEmbedder{failures: 10}
	r := NewRetryEmbedder(inner, 3, time.Millisecond, zap.NewNop())

	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", inner.calls)
	}
}

func TestRetryEmbedder_DimensionMismatchNotRetried(t *testing.T) {
	inner := &flakyEmbedder{failures: 10, err: domain.ErrVectorDimMismatch}
	r := NewRetryEmbedder(inner, 3, time.Millisecond, zap.NewNop())

	_, err := r.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected a single attempt, got %d", inner.calls)
	}
}

func TestRetryEmbedder_ContextCancelStopsBackoff(t *testing.T) {
	inner := &flakyEmbedder{failures: 10}
	r := NewRetryEmbedder(inner, 5, 10*time.Second, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Embed(ctx, "hello")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("expected backoff wait interrupted by context")
	}
}

func TestRetryEmbedder_BatchFallbackForNonBatchInner(t *testing.T) {
	inner := &flakyEmbedder{}
	r := NewRetryEmbedder(inner, 3, time.Millisecond, zap.NewNop())

	result, err := r.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(result.Embeddings))
	}
	if inner.calls != 2 {
		t.Errorf("expected per-text fallback calls, got %d", inner.calls)
	}
}
