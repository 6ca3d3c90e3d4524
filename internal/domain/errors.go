package domain

import "errors"

var (
	// ErrProjectNotFound signals an unknown tenant slug or id.
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectExists signals a duplicate project slug.
	ErrProjectExists = errors.New("project already exists")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidRequest signals a request rejected by validation before any retrieval work.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidCategory signals a category outside the fixed label set.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrVectorDimMismatch signals an embedding that violates the corpus-wide dimension contract.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure after retries.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankProviderError signals a rerank provider failure. Advisory: the
	// orchestrator degrades to the fused order instead of propagating it.
	ErrRerankProviderError = errors.New("rerank provider error")
)
