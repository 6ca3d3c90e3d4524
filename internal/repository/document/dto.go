package document

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/fraim-dev/contextd/internal/domain"
)

// documentToHash converts a domain Document into a flat map[string]string for HSET.
func documentToHash(doc domain.Document) map[string]string {
	return map[string]string{
		"id":           doc.ID().String(),
		"project_id":   doc.ProjectID().String(),
		"path":         doc.Path(),
		"title":        doc.Title(),
		"category":     doc.Category().String(),
		"content_hash": doc.ContentHash(),
		"chunk_count":  strconv.Itoa(doc.ChunkCount()),
		"updated_at":   strconv.FormatInt(doc.UpdatedAt(), 10),
	}
}

// documentFromHash converts a flat hash map back into a domain Document.
func documentFromHash(m map[string]string) (domain.Document, error) {
	id, err := uuid.Parse(m["id"])
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse document id %q: %w", m["id"], err)
	}
	projectID, err := uuid.Parse(m["project_id"])
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse project id %q: %w", m["project_id"], err)
	}
	chunkCount, _ := strconv.Atoi(m["chunk_count"])
	updatedAt, _ := strconv.ParseInt(m["updated_at"], 10, 64)

	return domain.ReconstructDocument(
		id, projectID, m["path"], m["title"], domain.Category(m["category"]),
		m["content_hash"], chunkCount, updatedAt,
	), nil
}

// chunkToHash flattens a chunk for HSET. Document path, title, and category are
// denormalized onto every chunk so search results render without extra reads.
func chunkToHash(doc domain.Document, c domain.Chunk) map[string]string {
	return map[string]string{
		"chunk_id":       c.ID().String(),
		"document_id":    c.DocumentID().String(),
		"document_path":  doc.Path(),
		"document_title": doc.Title(),
		"category":       doc.Category().String(),
		"ordinal":        strconv.Itoa(c.Ordinal()),
		"content":        c.Content(),
		"embedding":      vectorToBytes(c.Embedding()),
	}
}

// chunkFromHash converts a flat hash map back into a domain Chunk.
func chunkFromHash(m map[string]string) (domain.Chunk, error) {
	id, err := uuid.Parse(m["chunk_id"])
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("parse chunk id %q: %w", m["chunk_id"], err)
	}
	docID, err := uuid.Parse(m["document_id"])
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("parse document id %q: %w", m["document_id"], err)
	}
	ordinal, _ := strconv.Atoi(m["ordinal"])

	return domain.ReconstructChunk(id, docID, ordinal, m["content"], bytesToVector(m["embedding"])), nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
