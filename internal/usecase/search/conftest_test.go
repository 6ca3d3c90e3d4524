package search

import (
	"context"
	"testing"
	"time"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
)

type mockProjects struct {
	project domain.Project
	err     error
}

func (m *mockProjects) Get(_ context.Context, _ string) (domain.Project, error) {
	return m.project, m.err
}

type mockBranches struct {
	vectorHits  []result.ChunkResult
	vectorErr   error
	vectorCalls int

	lexicalHits  []result.ChunkResult
	lexicalErr   error
	lexicalCalls int

	lastVectorK  int
	lastLexicalK int
}

func (m *mockBranches) VectorSearch(
	_ context.Context, _ string, _ []float32, k int, _ domain.Category,
) ([]result.ChunkResult, error) {
	m.vectorCalls++
	m.lastVectorK = k
	return m.vectorHits, m.vectorErr
}

func (m *mockBranches) LexicalSearch(
	_ context.Context, _, _ string, topK int, _ domain.Category,
) ([]result.ChunkResult, error) {
	m.lexicalCalls++
	m.lastLexicalK = topK
	return m.lexicalHits, m.lexicalErr
}

type mockCache struct {
	cached   *result.Response
	getCalls int
	setCalls int
	lastSet  result.Response
}

func (m *mockCache) Get(_ context.Context, _ request.Request, _ int64) (*result.Response, bool) {
	m.getCalls++
	if m.cached != nil {
		return m.cached, true
	}
	return nil, false
}

func (m *mockCache) Set(_ context.Context, _ request.Request, _ int64, resp result.Response) {
	m.setCalls++
	m.lastSet = resp
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

type mockReranker struct {
	rankings []domain.Ranking
	err      error
	delay    time.Duration
	calls    int
}

func (m *mockReranker) Rerank(
	ctx context.Context, _ string, _ []string, _ int,
) ([]domain.Ranking, error) {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.rankings, m.err
}

type fixture struct {
	projects *mockProjects
	branches *mockBranches
	cache    *mockCache
	embed    *mockEmbedder
	reranker *mockReranker
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	project, err := domain.NewProject("acme", "Acme Corp", nil)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}

	f := &fixture{
		projects: &mockProjects{project: project},
		branches: &mockBranches{},
		cache:    &mockCache{},
		embed:    &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}},
		reranker: &mockReranker{},
	}
	f.svc = New(f.projects, f.branches, f.cache, f.embed, nil, f.reranker, Options{
		Weights:       Weights{Vector: 0.7, Lexical: 0.3},
		RerankTimeout: 100 * time.Millisecond,
	})
	return f
}

func testRequest(t *testing.T, topK int, useReranker bool) request.Request {
	t.Helper()
	req, err := request.New("how do I install", "acme", topK, "", useReranker)
	if err != nil {
		t.Fatalf("request.New() error = %v", err)
	}
	return req
}
