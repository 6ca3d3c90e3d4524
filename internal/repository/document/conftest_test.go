package document

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/fraim-dev/contextd/internal/db"
	"github.com/fraim-dev/contextd/internal/domain"
)

const testKeyPrefix = "fraim:"

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delMultiFn     func(ctx context.Context, keys []string) error
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) DelMulti(ctx context.Context, keys []string) error {
	if m.delMultiFn != nil {
		return m.delMultiFn(ctx, keys)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, testKeyPrefix)
	return repo, ms
}

func testDocument(t *testing.T, contents ...string) (domain.Document, []domain.Chunk) {
	t.Helper()

	doc, err := domain.NewDocument(uuid.New(), "docs/setup.md", "Setup Guide", domain.CategoryDocs)
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}

	chunks := make([]domain.Chunk, 0, len(contents))
	for i, content := range contents {
		c, err := domain.NewChunk(doc.ID(), i, content)
		if err != nil {
			t.Fatalf("NewChunk() error = %v", err)
		}
		chunks = append(chunks, c.WithEmbedding([]float32{0.1, 0.2, 0.3}))
	}

	doc = doc.WithContent(domain.HashContent(contents), len(chunks), 1700000000000)
	return doc, chunks
}
