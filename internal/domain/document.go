package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// MaxChunkSize is the maximum chunk content size in bytes.
const MaxChunkSize = 32768 // 32KB

// Document is a tenant-scoped document aggregate (immutable value object).
// The content hash covers the concatenated chunk contents and is used to skip
// re-ingestion of unchanged documents.
type Document struct {
	id          uuid.UUID
	projectID   uuid.UUID
	path        string
	title       string
	category    Category
	contentHash string
	chunkCount  int
	updatedAt   int64
}

// NewDocument validates and creates a Document. Path is unique within a project.
func NewDocument(projectID uuid.UUID, path, title string, category Category) (Document, error) {
	if projectID == uuid.Nil {
		return Document{}, fmt.Errorf("project id is required")
	}
	if path == "" {
		return Document{}, fmt.Errorf("document path is required")
	}
	if len(path) > 512 {
		return Document{}, fmt.Errorf("document path too long (max 512)")
	}
	if category == "" {
		category = CategoryGeneral
	}
	if !category.IsValid() {
		return Document{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	return Document{
		id:        uuid.New(),
		projectID: projectID,
		path:      path,
		title:     title,
		category:  category,
	}, nil
}

// ReconstructDocument creates a Document without validation (storage hydration).
func ReconstructDocument(
	id, projectID uuid.UUID, path, title string, category Category,
	contentHash string, chunkCount int, updatedAt int64,
) Document {
	return Document{
		id: id, projectID: projectID, path: path, title: title,
		category: category, contentHash: contentHash,
		chunkCount: chunkCount, updatedAt: updatedAt,
	}
}

// WithContent returns a copy carrying the content hash and chunk count of an
// ingested revision.
func (d Document) WithContent(contentHash string, chunkCount int, updatedAt int64) Document {
	d.contentHash = contentHash
	d.chunkCount = chunkCount
	d.updatedAt = updatedAt
	return d
}

// ID returns the document identifier.
func (d *Document) ID() uuid.UUID { return d.id }

// ProjectID returns the owning tenant.
func (d *Document) ProjectID() uuid.UUID { return d.projectID }

// Path returns the project-unique document path.
func (d *Document) Path() string { return d.path }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Category returns the category label.
func (d *Document) Category() Category { return d.category }

// ContentHash returns the hash of the ingested content.
func (d *Document) ContentHash() string { return d.contentHash }

// ChunkCount returns the number of chunks in the last ingested revision.
func (d *Document) ChunkCount() int { return d.chunkCount }

// UpdatedAt returns the last ingestion time in unix milliseconds.
func (d *Document) UpdatedAt() int64 { return d.updatedAt }

// Chunk is an indexed unit of document text carrying a fixed-dimension embedding.
type Chunk struct {
	id         uuid.UUID
	documentID uuid.UUID
	ordinal    int
	content    string
	embedding  []float32
}

// NewChunk validates and creates a Chunk. The embedding is attached later by
// the ingestion pipeline; dimension enforcement happens at the store boundary.
func NewChunk(documentID uuid.UUID, ordinal int, content string) (Chunk, error) {
	if documentID == uuid.Nil {
		return Chunk{}, fmt.Errorf("document id is required")
	}
	if ordinal < 0 {
		return Chunk{}, fmt.Errorf("chunk ordinal must be non-negative")
	}
	if content == "" {
		return Chunk{}, fmt.Errorf("chunk content is required")
	}
	if len(content) > MaxChunkSize {
		return Chunk{}, fmt.Errorf("chunk content too large (max %d bytes)", MaxChunkSize)
	}

	return Chunk{
		id:         uuid.New(),
		documentID: documentID,
		ordinal:    ordinal,
		content:    content,
	}, nil
}

// ReconstructChunk creates a Chunk without validation (storage hydration).
func ReconstructChunk(
	id, documentID uuid.UUID, ordinal int, content string, embedding []float32,
) Chunk {
	return Chunk{id: id, documentID: documentID, ordinal: ordinal, content: content, embedding: embedding}
}

// WithEmbedding returns a copy carrying the embedding vector.
func (c Chunk) WithEmbedding(embedding []float32) Chunk {
	c.embedding = embedding
	return c
}

// ID returns the chunk identifier.
func (c *Chunk) ID() uuid.UUID { return c.id }

// DocumentID returns the owning document.
func (c *Chunk) DocumentID() uuid.UUID { return c.documentID }

// Ordinal returns the chunk position within its document.
func (c *Chunk) Ordinal() int { return c.ordinal }

// Content returns the chunk text.
func (c *Chunk) Content() string { return c.content }

// Embedding returns the embedding vector.
func (c *Chunk) Embedding() []float32 { return c.embedding }

// HashContent computes the content hash over ordered chunk contents.
func HashContent(chunks []string) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
