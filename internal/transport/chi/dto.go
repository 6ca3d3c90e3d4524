package chi

import (
	"time"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
)

// Error codes returned to clients.
const (
	codeBadRequest             = "bad_request"
	codeValidationFailed       = "validation_failed"
	codeProjectNotFound        = "project_not_found"
	codeDocumentNotFound       = "document_not_found"
	codeProjectExists          = "project_already_exists"
	codeVectorDimMismatch      = "vector_dim_mismatch"
	codeEmbeddingProviderError = "embedding_provider_error"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type searchRequest struct {
	Query       string `json:"query"`
	Project     string `json:"project"`
	TopK        int    `json:"top_k,omitempty"`
	Category    string `json:"category,omitempty"`
	UseReranker bool   `json:"use_reranker,omitempty"`
}

type deepSearchRequest struct {
	Query   string `json:"query"`
	Project string `json:"project"`
}

type chunkResultDTO struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	DocumentPath  string  `json:"document_path"`
	DocumentTitle string  `json:"document_title"`
	Category      string  `json:"category"`
	ChunkIndex    int     `json:"chunk_index"`
}

type searchResponseDTO struct {
	Results       []chunkResultDTO `json:"results"`
	TotalFound    int              `json:"total_found"`
	LatencyMs     int64            `json:"latency_ms"`
	CacheHit      bool             `json:"cache_hit"`
	CorpusVersion int64            `json:"corpus_version"`
}

type bundleDTO struct {
	Results       []chunkResultDTO `json:"results"`
	Rounds        int              `json:"rounds"`
	CorpusVersion int64            `json:"corpus_version"`
}

type roundEventDTO struct {
	Round      int `json:"round"`
	ChunkCount int `json:"chunk_count"`
}

type createProjectRequest struct {
	Slug     string            `json:"slug"`
	Name     string            `json:"name,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

type projectDTO struct {
	ID            string            `json:"id"`
	Slug          string            `json:"slug"`
	Name          string            `json:"name"`
	Settings      map[string]string `json:"settings,omitempty"`
	CorpusVersion int64             `json:"corpus_version"`
	CreatedAt     time.Time         `json:"created_at"`
}

type projectListResponse struct {
	Items []projectDTO `json:"items"`
}

type upsertDocumentRequest struct {
	Title    string   `json:"title,omitempty"`
	Category string   `json:"category,omitempty"`
	Chunks   []string `json:"chunks"`
}

type documentDTO struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	Category    string    `json:"category"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type documentListResponse struct {
	Items []documentDTO `json:"items"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func chunkResultToDTO(r *result.ChunkResult) chunkResultDTO {
	return chunkResultDTO{
		ChunkID:       r.ID().String(),
		DocumentID:    r.DocumentID().String(),
		Content:       r.Content(),
		Score:         r.Score(),
		DocumentPath:  r.DocumentPath(),
		DocumentTitle: r.DocumentTitle(),
		Category:      r.Category().String(),
		ChunkIndex:    r.ChunkIndex(),
	}
}

func searchResponseToDTO(resp result.Response) searchResponseDTO {
	items := make([]chunkResultDTO, len(resp.Results))
	for i := range resp.Results {
		items[i] = chunkResultToDTO(&resp.Results[i])
	}
	return searchResponseDTO{
		Results:       items,
		TotalFound:    resp.TotalFound,
		LatencyMs:     resp.LatencyMs,
		CacheHit:      resp.CacheHit,
		CorpusVersion: resp.CorpusVersion,
	}
}

func bundleToDTO(b result.Bundle) bundleDTO {
	items := make([]chunkResultDTO, len(b.Results))
	for i := range b.Results {
		items[i] = chunkResultToDTO(&b.Results[i])
	}
	return bundleDTO{
		Results:       items,
		Rounds:        b.Rounds,
		CorpusVersion: b.CorpusVersion,
	}
}

func projectToDTO(p domain.Project) projectDTO {
	return projectDTO{
		ID:            p.ID().String(),
		Slug:          p.Slug(),
		Name:          p.Name(),
		Settings:      p.Settings(),
		CorpusVersion: p.CorpusVersion(),
		CreatedAt:     unixMilliUTC(p.CreatedAt()),
	}
}

func documentToDTO(d domain.Document) documentDTO {
	return documentDTO{
		ID:          d.ID().String(),
		Path:        d.Path(),
		Title:       d.Title(),
		Category:    d.Category().String(),
		ContentHash: d.ContentHash(),
		ChunkCount:  d.ChunkCount(),
		UpdatedAt:   unixMilliUTC(d.UpdatedAt()),
	}
}
