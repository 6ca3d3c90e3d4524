// Package search orchestrates the fast retrieval path: cache probe, query
// transform, concurrent vector and lexical branches, weighted RRF fusion, and
// a timeout-bounded rerank pass.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
	"github.com/fraim-dev/contextd/internal/logger"
	"github.com/fraim-dev/contextd/internal/metrics"
)

// Weights holds the RRF branch weights.
type Weights struct {
	Vector  float64
	Lexical float64
}

// Options holds the tunable parts of the search pipeline.
type Options struct {
	Weights       Weights
	RerankTimeout time.Duration
}

// Service handles hybrid search over a tenant corpus.
type Service struct {
	projects  ProjectReader
	branches  Branches
	cache     Cache
	embed     Embedder
	transform Transformer
	reranker  domain.Reranker
	opts      Options
}

// New creates a search service. transform and reranker may be nil; the
// corresponding pipeline stages are then skipped.
func New(
	projects ProjectReader, branches Branches, cache Cache,
	embed Embedder, transform Transformer, reranker domain.Reranker,
	opts Options,
) *Service {
	return &Service{
		projects:  projects,
		branches:  branches,
		cache:     cache,
		embed:     embed,
		transform: transform,
		reranker:  reranker,
		opts:      opts,
	}
}

// Search executes the fast path for a validated request.
func (s *Service) Search(ctx context.Context, req request.Request) (result.Response, error) {
	start := time.Now()

	project, err := s.projects.Get(ctx, req.ProjectSlug())
	if err != nil {
		return result.Response{}, fmt.Errorf("get project: %w", err)
	}
	version := project.CorpusVersion()

	if cached, ok := s.cache.Get(ctx, req, version); ok {
		metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
		cached.LatencyMs = time.Since(start).Milliseconds()
		return *cached, nil
	}
	metrics.SearchCacheTotal.WithLabelValues("miss").Inc()

	query := req.Query()
	if s.transform != nil {
		query = s.transform.Transform(ctx, query)
	}

	fused, err := s.retrieve(ctx, req, query)
	if err != nil {
		return result.Response{}, err
	}

	final := s.rerankPass(ctx, req, query, fused)

	resp := result.Response{
		Results:       final,
		TotalFound:    len(final),
		LatencyMs:     time.Since(start).Milliseconds(),
		CorpusVersion: version,
	}

	// A cancelled request must not publish a possibly partial response.
	if ctx.Err() == nil {
		s.cache.Set(ctx, req, version, resp)
	}

	return resp, nil
}

// retrieve runs both branches concurrently and fuses them. Each branch
// over-fetches to give the fusion enough overlap to be meaningful.
func (s *Service) retrieve(
	ctx context.Context, req request.Request, query string,
) ([]result.ChunkResult, error) {
	embStart := time.Now()
	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	metrics.SearchStageDuration.WithLabelValues("embed").Observe(time.Since(embStart).Seconds())

	fetchK := req.TopK() * 2

	var vectorHits, lexicalHits []result.ChunkResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer observeStage("vector", time.Now())
		var branchErr error
		vectorHits, branchErr = s.branches.VectorSearch(
			gctx, req.ProjectSlug(), embResult.Embedding, fetchK, req.Category())
		if branchErr != nil {
			return fmt.Errorf("vector branch: %w", branchErr)
		}
		return nil
	})
	g.Go(func() error {
		defer observeStage("lexical", time.Now())
		var branchErr error
		lexicalHits, branchErr = s.branches.LexicalSearch(
			gctx, req.ProjectSlug(), query, fetchK, req.Category())
		if branchErr != nil {
			return fmt.Errorf("lexical branch: %w", branchErr)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuseRRF(vectorHits, lexicalHits,
		s.opts.Weights.Vector, s.opts.Weights.Lexical, req.TopK()), nil
}

// rerankPass reorders the fused results under a hard timeout. Timeouts and
// provider errors degrade to the fused order; rerank never fails a request.
func (s *Service) rerankPass(
	ctx context.Context, req request.Request, query string, fused []result.ChunkResult,
) []result.ChunkResult {
	if s.reranker == nil || !req.UseReranker() || len(fused) == 0 {
		return fused
	}

	rerankCtx, cancel := context.WithTimeout(ctx, s.opts.RerankTimeout)
	defer cancel()

	rerankStart := time.Now()
	documents := make([]string, len(fused))
	for i := range fused {
		documents[i] = fused[i].Content()
	}

	rankings, err := s.reranker.Rerank(rerankCtx, query, documents, len(documents))
	metrics.SearchStageDuration.WithLabelValues("rerank").Observe(time.Since(rerankStart).Seconds())
	if err != nil {
		metrics.RerankFallbacksTotal.Inc()
		logger.FromContext(ctx).Warn("Rerank failed, keeping fused order",
			zap.Error(err), zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)))
		return fused
	}
	if len(rankings) == 0 {
		return fused
	}

	reordered := make([]result.ChunkResult, 0, len(fused))
	seen := make(map[int]bool, len(rankings))
	for _, rank := range rankings {
		if rank.Index < 0 || rank.Index >= len(fused) || seen[rank.Index] {
			continue
		}
		seen[rank.Index] = true
		reordered = append(reordered, fused[rank.Index].WithScore(rank.Score))
	}
	// Providers may return fewer rankings than documents; keep the tail in
	// fused order so results are never silently dropped.
	for i := range fused {
		if !seen[i] {
			reordered = append(reordered, fused[i])
		}
	}
	return reordered
}

func observeStage(stage string, start time.Time) {
	metrics.SearchStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
