package search

import (
	"context"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
)

// Branches defines the storage contract for the two retrieval branches.
type Branches interface {
	VectorSearch(
		ctx context.Context, slug string, vector []float32, k int, category domain.Category,
	) ([]result.ChunkResult, error)

	LexicalSearch(
		ctx context.Context, slug, query string, topK int, category domain.Category,
	) ([]result.ChunkResult, error)
}

// ProjectReader resolves tenants and their corpus version snapshots.
type ProjectReader interface {
	Get(ctx context.Context, slug string) (domain.Project, error)
}

// Cache stores fast-path responses under corpus-versioned keys.
type Cache interface {
	Get(ctx context.Context, req request.Request, corpusVersion int64) (*result.Response, bool)
	Set(ctx context.Context, req request.Request, corpusVersion int64, resp result.Response)
}

// Transformer rewrites the query before retrieval. Implementations degrade to
// the identity function, never to an error.
type Transformer interface {
	Transform(ctx context.Context, query string) string
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
