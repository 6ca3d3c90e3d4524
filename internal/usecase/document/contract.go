package document

import (
	"context"

	"github.com/fraim-dev/contextd/internal/domain"
)

// Repository defines the storage contract for documents and their chunks.
type Repository interface {
	Upsert(ctx context.Context, slug string, doc domain.Document, chunks []domain.Chunk) (
		created bool, changed bool, err error,
	)
	Get(ctx context.Context, slug, path string) (domain.Document, error)
	List(ctx context.Context, slug string) ([]domain.Document, error)
	Delete(ctx context.Context, slug, path string) error
}

// Projects resolves tenants and owns the corpus version counter.
type Projects interface {
	Get(ctx context.Context, slug string) (domain.Project, error)
	BumpVersion(ctx context.Context, slug string) (int64, error)
}

// Embedder vectorizes chunk contents in one provider call.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
