package deep

import (
	"context"

	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
)

// Searcher runs one fast-path search. Deep mode reuses the full fast path so
// sub-queries benefit from the result cache.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Response, error)
}
