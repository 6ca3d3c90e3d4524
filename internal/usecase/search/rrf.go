package search

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fraim-dev/contextd/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
// It is not configurable: changing it would silently reshape every fused score.
const rrfK = 60

// fuseRRF merges the vector and lexical branches via weighted Reciprocal Rank Fusion.
// score(c) = wVec/(k + rank_vec(c)) + wLex/(k + rank_lex(c)), ranks 1-based,
// with a missing branch contributing zero. Ties break on (document, chunk
// ordinal) so the fused order is deterministic across runs.
func fuseRRF(vector, lexical []result.ChunkResult, wVec, wLex float64, topK int) []result.ChunkResult {
	type scored struct {
		res   result.ChunkResult
		score float64
	}

	merged := make(map[uuid.UUID]*scored, len(vector)+len(lexical))

	for rank := range vector {
		r := vector[rank]
		s := wVec / float64(rrfK+rank+1)
		merged[r.ID()] = &scored{res: r, score: s}
	}

	for rank := range lexical {
		r := lexical[rank]
		s := wLex / float64(rrfK+rank+1)
		if existing, ok := merged[r.ID()]; ok {
			existing.score += s
		} else {
			merged[r.ID()] = &scored{res: r, score: s}
		}
	}

	results := make([]result.ChunkResult, 0, len(merged))
	for _, s := range merged {
		results = append(results, s.res.WithScore(s.score))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if a.DocumentPath() != b.DocumentPath() {
			return a.DocumentPath() < b.DocumentPath()
		}
		return a.ChunkIndex() < b.ChunkIndex()
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results
}
