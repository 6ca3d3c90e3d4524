package document

import (
	"context"
	"testing"

	"github.com/fraim-dev/contextd/internal/domain"
)

type mockRepo struct {
	docs map[string]domain.Document

	upsertCreated bool
	upsertChanged bool
	upsertErr     error
	upsertCalls   int
	lastChunks    []domain.Chunk

	deleteErr   error
	deleteCalls int
}

func (m *mockRepo) Upsert(
	_ context.Context, _ string, _ domain.Document, chunks []domain.Chunk,
) (bool, bool, error) {
	m.upsertCalls++
	m.lastChunks = chunks
	return m.upsertCreated, m.upsertChanged, m.upsertErr
}

func (m *mockRepo) Get(_ context.Context, _, path string) (domain.Document, error) {
	doc, ok := m.docs[path]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *mockRepo) List(_ context.Context, _ string) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, d)
	}
	return docs, nil
}

func (m *mockRepo) Delete(_ context.Context, _, _ string) error {
	m.deleteCalls++
	return m.deleteErr
}

type mockProjects struct {
	project domain.Project
	getErr  error

	bumpCalls int
	bumpErr   error
	version   int64
}

func (m *mockProjects) Get(_ context.Context, _ string) (domain.Project, error) {
	return m.project, m.getErr
}

func (m *mockProjects) BumpVersion(_ context.Context, _ string) (int64, error) {
	m.bumpCalls++
	m.version++
	return m.version, m.bumpErr
}

type mockEmbedder struct {
	err   error
	calls int
	dim   int
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	dim := m.dim
	if dim == 0 {
		dim = 3
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, dim)
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts) * 10}, nil
}

type fixture struct {
	repo     *mockRepo
	projects *mockProjects
	embedder *mockEmbedder
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	project, err := domain.NewProject("acme", "Acme Corp", nil)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}

	f := &fixture{
		repo:     &mockRepo{docs: map[string]domain.Document{}},
		projects: &mockProjects{project: project, version: 1},
		embedder: &mockEmbedder{},
	}
	f.svc = New(f.repo, f.projects, f.embedder)
	return f
}
