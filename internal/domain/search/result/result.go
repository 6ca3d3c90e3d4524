// Package result holds search result value objects.
package result

import (
	"github.com/google/uuid"

	"github.com/fraim-dev/contextd/internal/domain"
)

// ChunkResult is a single externally visible search hit.
type ChunkResult struct {
	id            uuid.UUID
	documentID    uuid.UUID
	content       string
	score         float64
	documentPath  string
	documentTitle string
	category      domain.Category
	chunkIndex    int
}

// New creates a chunk result.
func New(
	id, documentID uuid.UUID, content string, score float64,
	documentPath, documentTitle string, category domain.Category, chunkIndex int,
) ChunkResult {
	return ChunkResult{
		id: id, documentID: documentID, content: content, score: score,
		documentPath: documentPath, documentTitle: documentTitle,
		category: category, chunkIndex: chunkIndex,
	}
}

// WithScore returns a copy carrying a replacement relevance score.
func (r ChunkResult) WithScore(score float64) ChunkResult {
	r.score = score
	return r
}

// ID returns the chunk identifier.
func (r *ChunkResult) ID() uuid.UUID { return r.id }

// DocumentID returns the owning document.
func (r *ChunkResult) DocumentID() uuid.UUID { return r.documentID }

// Content returns the chunk text.
func (r *ChunkResult) Content() string { return r.content }

// Score returns the relevance score in [0,1].
func (r *ChunkResult) Score() float64 { return r.score }

// DocumentPath returns the path of the owning document.
func (r *ChunkResult) DocumentPath() string { return r.documentPath }

// DocumentTitle returns the title of the owning document.
func (r *ChunkResult) DocumentTitle() string { return r.documentTitle }

// Category returns the category label of the owning document.
func (r *ChunkResult) Category() domain.Category { return r.category }

// ChunkIndex returns the chunk ordinal within its document.
func (r *ChunkResult) ChunkIndex() int { return r.chunkIndex }

// Response is the fast-path search response.
type Response struct {
	Results       []ChunkResult
	TotalFound    int
	LatencyMs     int64
	CacheHit      bool
	CorpusVersion int64
}

// Bundle is the deep-mode context bundle: the ordered union of results across
// rounds and context domains, deduplicated by chunk identity.
type Bundle struct {
	Results       []ChunkResult
	Rounds        int
	CorpusVersion int64
}
