package chi

import (
	"context"
	"net/http"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
	deepuc "github.com/fraim-dev/contextd/internal/usecase/deep"
	healthuc "github.com/fraim-dev/contextd/internal/usecase/health"
)

type mockSearcher struct {
	resp    result.Response
	err     error
	lastReq request.Request
}

func (m *mockSearcher) Search(_ context.Context, req request.Request) (result.Response, error) {
	m.lastReq = req
	return m.resp, m.err
}

type mockDeep struct {
	bundle result.Bundle
	err    error
	events []deepuc.Progress
}

func (m *mockDeep) DeepSearch(
	_ context.Context, _, _ string, onProgress deepuc.ProgressFunc,
) (result.Bundle, error) {
	if m.err != nil {
		return result.Bundle{}, m.err
	}
	for _, e := range m.events {
		if onProgress != nil {
			onProgress(e)
		}
	}
	return m.bundle, nil
}

type mockProjects struct {
	project   domain.Project
	createErr error
	getErr    error
	deleteErr error
}

func (m *mockProjects) Create(_ context.Context, slug, name string, settings map[string]string) (domain.Project, error) {
	if m.createErr != nil {
		return domain.Project{}, m.createErr
	}
	p, err := domain.NewProject(slug, name, settings)
	if err != nil {
		return domain.Project{}, domain.ErrInvalidRequest
	}
	return p, nil
}

func (m *mockProjects) Get(_ context.Context, _ string) (domain.Project, error) {
	return m.project, m.getErr
}

func (m *mockProjects) List(_ context.Context) ([]domain.Project, error) {
	return []domain.Project{m.project}, nil
}

func (m *mockProjects) Delete(_ context.Context, _ string) error {
	return m.deleteErr
}

type mockDocuments struct {
	doc       domain.Document
	created   bool
	ingestErr error
	deleteErr error

	lastSlug   string
	lastPath   string
	lastChunks []string
}

func (m *mockDocuments) Ingest(
	_ context.Context, slug, path, _ string, _ domain.Category, contents []string,
) (domain.Document, bool, error) {
	m.lastSlug, m.lastPath, m.lastChunks = slug, path, contents
	return m.doc, m.created, m.ingestErr
}

func (m *mockDocuments) Get(_ context.Context, slug, path string) (domain.Document, error) {
	m.lastSlug, m.lastPath = slug, path
	return m.doc, nil
}

func (m *mockDocuments) List(_ context.Context, slug string) ([]domain.Document, error) {
	m.lastSlug = slug
	return []domain.Document{m.doc}, nil
}

func (m *mockDocuments) Delete(_ context.Context, slug, path string) error {
	m.lastSlug, m.lastPath = slug, path
	return m.deleteErr
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report {
	return m.report
}

type fixture struct {
	search    *mockSearcher
	deep      *mockDeep
	projects  *mockProjects
	documents *mockDocuments
	health    *mockHealth
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	project, err := domain.NewProject("acme", "Acme Corp", nil)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	doc, err := domain.NewDocument(project.ID(), "guide/install.md", "Install", domain.CategoryDocs)
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}

	f := &fixture{
		search:    &mockSearcher{},
		deep:      &mockDeep{},
		projects:  &mockProjects{project: project},
		documents: &mockDocuments{doc: doc.WithContent("abc", 2, 123)},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"store": healthuc.CheckOK},
		}},
	}

	server := NewServer(f.search, f.deep, f.projects, f.documents, f.health, zap.NewNop())
	router := chirouter.NewRouter()
	server.Routes(router)
	f.handler = router
	return f
}

func testHit(t *testing.T, path string) result.ChunkResult {
	t.Helper()
	return result.New(uuid.New(), uuid.New(), "chunk text", 0.42,
		path, "Title", domain.CategoryDocs, 0)
}
