// Package deep implements the multi-round context gathering controller. Each
// round runs one fast-path search per context domain, merges the hits into a
// deduplicated bundle, and reports progress until the bundle stops growing,
// a sufficiency check passes, or the round cap is reached.
package deep

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
	"github.com/fraim-dev/contextd/internal/logger"
	"github.com/fraim-dev/contextd/internal/metrics"
)

// DefaultMaxRounds caps the gather loop.
const DefaultMaxRounds = 3

// Progress describes the bundle state after a completed round.
type Progress struct {
	Round      int
	ChunkCount int
}

// ProgressFunc receives one event per completed round.
type ProgressFunc func(Progress)

// Sufficiency decides whether the gathered bundle is adequate and the loop
// may stop before the round cap.
type Sufficiency func(results []result.ChunkResult) bool

// Options holds the tunable parts of the deep controller.
type Options struct {
	// MaxRounds bounds the gather loop; values < 1 fall back to DefaultMaxRounds.
	MaxRounds int
	// TopKPerDomain is the per-domain fetch size in round one. Later rounds
	// fetch proportionally deeper so a new round can surface new chunks.
	TopKPerDomain int
	// Sufficient may be nil, in which case only the round cap and the
	// no-new-chunks rule terminate the loop.
	Sufficient Sufficiency
}

// Service walks context domains over multiple rounds and assembles a bundle.
type Service struct {
	search Searcher
	opts   Options
}

// New creates a deep search controller.
func New(search Searcher, opts Options) *Service {
	if opts.MaxRounds < 1 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.TopKPerDomain < 1 {
		opts.TopKPerDomain = request.DefaultTopK
	}
	return &Service{search: search, opts: opts}
}

// DeepSearch gathers a context bundle for the query. onProgress may be nil.
func (s *Service) DeepSearch(
	ctx context.Context, slug, query string, onProgress ProgressFunc,
) (result.Bundle, error) {
	log := logger.FromContext(ctx)

	var (
		bundle  []result.ChunkResult
		seen    = make(map[uuid.UUID]bool)
		version int64
		rounds  int
	)

	for round := 1; round <= s.opts.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return result.Bundle{}, err
		}

		added := 0
		for _, category := range domain.ContextDomains() {
			// Deeper fetch each round, so a repeat pass over the same
			// domains can still contribute chunks below the previous cut.
			// Capped at the request ceiling: a wide TopKPerDomain must not
			// turn a late round into a validation failure.
			topK := min(s.opts.TopKPerDomain*round, request.MaxTopK)
			req, err := request.New(query, slug, topK, category, false)
			if err != nil {
				return result.Bundle{}, fmt.Errorf("build round request: %w", err)
			}

			resp, err := s.search.Search(ctx, req)
			if err != nil {
				return result.Bundle{}, fmt.Errorf("gather %s: %w", category, err)
			}
			version = resp.CorpusVersion

			for _, hit := range resp.Results {
				if seen[hit.ID()] {
					continue
				}
				seen[hit.ID()] = true
				bundle = append(bundle, hit)
				added++
			}
		}

		rounds = round
		if onProgress != nil {
			onProgress(Progress{Round: round, ChunkCount: len(bundle)})
		}
		log.Debug("Deep round complete",
			zap.Int("round", round),
			zap.Int("added", added),
			zap.Int("total", len(bundle)))

		if added == 0 {
			break
		}
		if s.opts.Sufficient != nil && s.opts.Sufficient(bundle) {
			break
		}
	}

	metrics.DeepRoundsTotal.Observe(float64(rounds))

	return result.Bundle{
		Results:       bundle,
		Rounds:        rounds,
		CorpusVersion: version,
	}, nil
}
