// Package document handles document ingestion and lifecycle. Every committed
// corpus mutation bumps the tenant's corpus version exactly once, which is what
// expires cached search results for that tenant.
package document

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/logger"
)

// Service handles document ingestion with automatic vectorization.
type Service struct {
	repo     Repository
	projects Projects
	embedder Embedder
}

// New creates a document service.
func New(repo Repository, projects Projects, embedder Embedder) *Service {
	return &Service{repo: repo, projects: projects, embedder: embedder}
}

// Ingest writes a pre-chunked document revision. Unchanged content is detected
// via the content hash and skipped without touching the corpus version, so
// re-ingesting an identical document never invalidates cached results.
// Returns the stored document and whether it was newly created.
func (s *Service) Ingest(
	ctx context.Context, slug, path, title string, category domain.Category, contents []string,
) (domain.Document, bool, error) {
	if len(contents) == 0 {
		return domain.Document{}, false, fmt.Errorf("%w: document has no chunks", domain.ErrInvalidRequest)
	}

	project, err := s.projects.Get(ctx, slug)
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("get project: %w", err)
	}

	doc, err := domain.NewDocument(project.ID(), path, title, category)
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err)
	}
	doc = doc.WithContent(domain.HashContent(contents), len(contents), time.Now().UnixMilli())

	// Short-circuit before paying for embeddings when nothing changed.
	if existing, err := s.repo.Get(ctx, slug, path); err == nil &&
		existing.ContentHash() == doc.ContentHash() {
		return existing, false, nil
	}

	chunks, err := s.buildChunks(ctx, doc, contents)
	if err != nil {
		return domain.Document{}, false, err
	}

	created, changed, err := s.repo.Upsert(ctx, slug, doc, chunks)
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("upsert document: %w", err)
	}

	if changed {
		version, err := s.projects.BumpVersion(ctx, slug)
		if err != nil {
			return domain.Document{}, false, fmt.Errorf("bump corpus version: %w", err)
		}
		logger.FromContext(ctx).Info("Document ingested",
			zap.String("path", path),
			zap.Int("chunks", len(chunks)),
			zap.Bool("created", created),
			zap.Int64("corpus_version", version))
	}

	return doc, created, nil
}

// buildChunks embeds all contents in one batch call and assembles chunk values.
func (s *Service) buildChunks(
	ctx context.Context, doc domain.Document, contents []string,
) ([]domain.Chunk, error) {
	batch, err := s.embedder.BatchEmbed(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("vectorize chunks: %w", err)
	}
	if len(batch.Embeddings) != len(contents) {
		return nil, fmt.Errorf("vectorize chunks: got %d embeddings for %d chunks",
			len(batch.Embeddings), len(contents))
	}

	chunks := make([]domain.Chunk, 0, len(contents))
	for i, content := range contents {
		chunk, err := domain.NewChunk(doc.ID(), i, content)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %s", domain.ErrInvalidRequest, i, err)
		}
		chunks = append(chunks, chunk.WithEmbedding(batch.Embeddings[i]))
	}
	return chunks, nil
}

// Get returns a document by path.
func (s *Service) Get(ctx context.Context, slug, path string) (domain.Document, error) {
	if _, err := s.projects.Get(ctx, slug); err != nil {
		return domain.Document{}, fmt.Errorf("get project: %w", err)
	}

	doc, err := s.repo.Get(ctx, slug, path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List returns all documents of a tenant.
func (s *Service) List(ctx context.Context, slug string) ([]domain.Document, error) {
	if _, err := s.projects.Get(ctx, slug); err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	docs, err := s.repo.List(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document and its chunks, bumping the corpus version.
func (s *Service) Delete(ctx context.Context, slug, path string) error {
	if _, err := s.projects.Get(ctx, slug); err != nil {
		return fmt.Errorf("get project: %w", err)
	}

	if err := s.repo.Delete(ctx, slug, path); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if _, err := s.projects.BumpVersion(ctx, slug); err != nil {
		return fmt.Errorf("bump corpus version: %w", err)
	}
	return nil
}
