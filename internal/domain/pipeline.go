package domain

import "context"

// QueryTransformer rewrites a raw query into retrieval-friendly form.
type QueryTransformer interface {
	Transform(ctx context.Context, query string) (string, error)
}

// Ranking is one reranked document reference: the index into the submitted
// document slice plus the provider's relevance score.
type Ranking struct {
	Index int
	Score float64
}

// Reranker reorders candidate documents by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Ranking, error)
}
