// Package request holds the validated search request value object.
package request

import (
	"fmt"

	"github.com/fraim-dev/contextd/internal/domain"
)

// Search parameter limits. Out-of-range values are rejected, never coerced.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 1000
	DefaultTopK    = 5
	MaxTopK        = 50
)

// Request is a validated search request.
type Request struct {
	query       string
	projectSlug string
	topK        int
	category    domain.Category
	useReranker bool
}

// New validates search parameters. topK 0 means "unset" and takes the default;
// any other out-of-range value is an error.
func New(query, projectSlug string, topK int, category domain.Category, useReranker bool) (Request, error) {
	if query == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if projectSlug == "" {
		return Request{}, fmt.Errorf("%w: project is required", domain.ErrInvalidRequest)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 || topK > MaxTopK {
		return Request{}, fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrInvalidRequest, MaxTopK)
	}
	if category != "" && !category.IsValid() {
		return Request{}, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}

	return Request{
		query:       query,
		projectSlug: projectSlug,
		topK:        topK,
		category:    category,
		useReranker: useReranker,
	}, nil
}

// Query returns the raw query text.
func (r *Request) Query() string { return r.query }

// ProjectSlug returns the tenant slug.
func (r *Request) ProjectSlug() string { return r.projectSlug }

// TopK returns the number of results to return.
func (r *Request) TopK() int { return r.topK }

// Category returns the optional category pre-filter ("" means no filter).
func (r *Request) Category() domain.Category { return r.category }

// UseReranker reports whether the rerank pass is requested.
func (r *Request) UseReranker() bool { return r.useReranker }
