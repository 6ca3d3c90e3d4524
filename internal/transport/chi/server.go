// Package chi exposes the HTTP API: search, deep search (SSE), project and
// document lifecycle, health, and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
	"github.com/fraim-dev/contextd/internal/logger"
	deepuc "github.com/fraim-dev/contextd/internal/usecase/deep"
	healthuc "github.com/fraim-dev/contextd/internal/usecase/health"
)

// Searcher runs the fast search path.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Response, error)
}

// DeepSearcher runs the multi-round deep path.
type DeepSearcher interface {
	DeepSearch(ctx context.Context, slug, query string, onProgress deepuc.ProgressFunc) (result.Bundle, error)
}

// Projects handles tenant lifecycle.
type Projects interface {
	Create(ctx context.Context, slug, name string, settings map[string]string) (domain.Project, error)
	Get(ctx context.Context, slug string) (domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	Delete(ctx context.Context, slug string) error
}

// Documents handles document ingestion and lifecycle.
type Documents interface {
	Ingest(ctx context.Context, slug, path, title string, category domain.Category, contents []string) (
		domain.Document, bool, error,
	)
	Get(ctx context.Context, slug, path string) (domain.Document, error)
	List(ctx context.Context, slug string) ([]domain.Document, error)
	Delete(ctx context.Context, slug, path string) error
}

// Health aggregates component checks.
type Health interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server hosts the HTTP handlers.
type Server struct {
	search        Searcher
	deep          DeepSearcher
	projects      Projects
	documents     Documents
	health        Health
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher, deep DeepSearcher, projects Projects,
	documents Documents, health Health, logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		deep:      deep,
		projects:  projects,
		documents: documents,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidCategory, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrProjectNotFound, http.StatusNotFound, codeProjectNotFound),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrProjectExists, http.StatusConflict, codeProjectExists),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
	}
	return s
}

// Routes mounts all handlers on a router.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chirouter.Router) {
		r.Post("/search", s.Search)
		r.Post("/deep-search", s.DeepSearch)

		r.Route("/projects", func(r chirouter.Router) {
			r.Post("/", s.CreateProject)
			r.Get("/", s.ListProjects)

			r.Route("/{slug}", func(r chirouter.Router) {
				r.Get("/", s.GetProject)
				r.Delete("/", s.DeleteProject)

				r.Get("/documents", s.ListDocuments)
				r.Put("/documents/*", s.UpsertDocument)
				r.Get("/documents/*", s.GetDocument)
				r.Delete("/documents/*", s.DeleteDocument)
			})
		})
	})
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	domainReq, err := request.New(req.Query, req.Project, req.TopK, domain.Category(req.Category), req.UseReranker)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx := logger.WithProject(r.Context(), req.Project)
	resp, err := s.search.Search(ctx, domainReq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseToDTO(resp))
}

// CreateProject handles POST /api/v1/projects.
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	p, err := s.projects.Create(r.Context(), req.Slug, req.Name, req.Settings)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, projectToDTO(p))
}

// ListProjects handles GET /api/v1/projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]projectDTO, len(projects))
	for i, p := range projects {
		items[i] = projectToDTO(p)
	}
	writeJSON(w, http.StatusOK, projectListResponse{Items: items})
}

// GetProject handles GET /api/v1/projects/{slug}.
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.Get(r.Context(), chirouter.URLParam(r, "slug"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectToDTO(p))
}

// DeleteProject handles DELETE /api/v1/projects/{slug}.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.projects.Delete(r.Context(), chirouter.URLParam(r, "slug")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertDocument handles PUT /api/v1/projects/{slug}/documents/{path}.
func (s *Server) UpsertDocument(w http.ResponseWriter, r *http.Request) {
	slug := chirouter.URLParam(r, "slug")
	path := chirouter.URLParam(r, "*")

	var req upsertDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	doc, created, err := s.documents.Ingest(
		r.Context(), slug, path, req.Title, domain.Category(req.Category), req.Chunks)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, documentToDTO(doc))
}

// GetDocument handles GET /api/v1/projects/{slug}/documents/{path}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(),
		chirouter.URLParam(r, "slug"), chirouter.URLParam(r, "*"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToDTO(doc))
}

// ListDocuments handles GET /api/v1/projects/{slug}/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context(), chirouter.URLParam(r, "slug"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]documentDTO, len(docs))
	for i, d := range docs {
		items[i] = documentToDTO(d)
	}
	writeJSON(w, http.StatusOK, documentListResponse{Items: items})
}

// DeleteDocument handles DELETE /api/v1/projects/{slug}/documents/{path}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	err := s.documents.Delete(r.Context(),
		chirouter.URLParam(r, "slug"), chirouter.URLParam(r, "*"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("Request rejected", zap.String("path", r.URL.Path), zap.Error(err))
			return
		}
	}
	s.logger.Error("Internal error", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrInvalidCategory,
		domain.ErrVectorDimMismatch,
		domain.ErrProjectNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrProjectExists,
		domain.ErrEmbeddingProviderError,
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func unixMilliUTC(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
