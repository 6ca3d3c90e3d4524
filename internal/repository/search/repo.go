// Package search runs the vector and lexical branches against a tenant's
// chunk index and hydrates chunk results.
package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/fraim-dev/contextd/internal/db"
	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Embeddings stay in the store; results carry text and metadata only.
var returnFields = []string{
	"chunk_id", "document_id", "document_path", "document_title",
	"category", "ordinal", "content",
}

// Repo implements usecase/search branch repositories.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a search repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// VectorSearch performs a KNN search over a tenant's chunks. Results come
// back in similarity order.
func (r *Repo) VectorSearch(
	ctx context.Context, slug string, vector []float32, k int, category domain.Category,
) ([]result.ChunkResult, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName(slug),
		Vector:       vector,
		K:            k,
		Filters:      categoryFilter(category),
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", slug, err)
	}
	return parseResults(sr)
}

// LexicalSearch performs a full-text search over a tenant's chunks. Results
// come back in relevance order.
func (r *Repo) LexicalSearch(
	ctx context.Context, slug, query string, topK int, category domain.Category,
) ([]result.ChunkResult, error) {
	q := &db.TextQuery{
		IndexName:    r.indexName(slug),
		Query:        query,
		TopK:         topK,
		Filters:      categoryFilter(category),
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchText(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search text %s: %w", slug, err)
	}
	return parseResults(sr)
}

func (r *Repo) indexName(slug string) string {
	return fmt.Sprintf("%s%s:idx", r.keyPrefix, slug)
}

func categoryFilter(category domain.Category) []db.TagFilter {
	if category == "" {
		return nil
	}
	return []db.TagFilter{{Field: "category", Value: category.String()}}
}

// parseResults converts db.SearchResult entries into chunk results, skipping
// entries whose identifiers fail to parse.
func parseResults(sr *db.SearchResult) ([]result.ChunkResult, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	results := make([]result.ChunkResult, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		chunkID, err := uuid.Parse(entry.Fields["chunk_id"])
		if err != nil {
			continue
		}
		docID, err := uuid.Parse(entry.Fields["document_id"])
		if err != nil {
			continue
		}
		ordinal, _ := strconv.Atoi(entry.Fields["ordinal"])

		results = append(results, result.New(
			chunkID, docID,
			entry.Fields["content"], entry.Score,
			entry.Fields["document_path"], entry.Fields["document_title"],
			domain.Category(entry.Fields["category"]), ordinal,
		))
	}
	return results, nil
}
