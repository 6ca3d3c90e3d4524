// Package document persists documents and their embedded chunks.
//
// Key layout:
//
//	{prefix}{slug}:doc:{ref}            document metadata hash
//	{prefix}{slug}:chunk:{ref}:{ord}    chunk hash (content, embedding, denormalized doc fields)
//
// ref is a short hash of the document path, so paths with glob or separator
// characters never leak into key syntax.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/fraim-dev/contextd/internal/db"
	"github.com/fraim-dev/contextd/internal/domain"
)

// store is the consumer interface for documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	DelMulti(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase document repositories.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a document repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Upsert writes a document revision and its chunks. When the stored content
// hash matches the incoming one the write is skipped entirely: no chunk
// churn, no corpus version bump for the caller to make.
// Returns (created, changed).
func (r *Repo) Upsert(
	ctx context.Context, slug string, doc domain.Document, chunks []domain.Chunk,
) (bool, bool, error) {
	ref := pathRef(doc.Path())
	docKey := r.docKey(slug, ref)

	existing, err := r.store.HGetAll(ctx, docKey)
	if err != nil {
		return false, false, fmt.Errorf("hgetall document %s: %w", doc.Path(), err)
	}

	if len(existing) > 0 && existing["content_hash"] == doc.ContentHash() {
		return false, false, nil
	}

	// Replace, not merge: stale chunks from a longer previous revision must go.
	if len(existing) > 0 {
		oldCount, _ := strconv.Atoi(existing["chunk_count"])
		if oldCount > len(chunks) {
			stale := make([]string, 0, oldCount-len(chunks))
			for ord := len(chunks); ord < oldCount; ord++ {
				stale = append(stale, r.chunkKey(slug, ref, ord))
			}
			if err := r.store.DelMulti(ctx, stale); err != nil {
				return false, false, fmt.Errorf("del stale chunks %s: %w", doc.Path(), err)
			}
		}
	}

	items := make([]db.HashSetItem, 0, len(chunks)+1)
	for _, c := range chunks {
		items = append(items, db.HashSetItem{
			Key:    r.chunkKey(slug, ref, c.Ordinal()),
			Fields: chunkToHash(doc, c),
		})
	}
	items = append(items, db.HashSetItem{Key: docKey, Fields: documentToHash(doc)})

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return false, false, fmt.Errorf("hset document %s: %w", doc.Path(), err)
	}

	return len(existing) == 0, true, nil
}

// Get returns a document by path.
func (r *Repo) Get(ctx context.Context, slug, path string) (domain.Document, error) {
	m, err := r.store.HGetAll(ctx, r.docKey(slug, pathRef(path)))
	if err != nil {
		return domain.Document{}, fmt.Errorf("hgetall document %s: %w", path, err)
	}
	if len(m) == 0 {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return documentFromHash(m)
}

// List returns all documents of a project sorted by path.
func (r *Repo) List(ctx context.Context, slug string) ([]domain.Document, error) {
	keys, err := r.store.Scan(ctx, r.docKey(slug, "*"))
	if err != nil {
		return nil, fmt.Errorf("scan documents %s: %w", slug, err)
	}
	if len(keys) == 0 {
		return []domain.Document{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi documents %s: %w", slug, err)
	}

	docs := make([]domain.Document, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		doc, err := documentFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse document %s: %w", keys[i], err)
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Path() < docs[j].Path()
	})

	return docs, nil
}

// Delete removes a document and all its chunks.
func (r *Repo) Delete(ctx context.Context, slug, path string) error {
	ref := pathRef(path)
	docKey := r.docKey(slug, ref)

	m, err := r.store.HGetAll(ctx, docKey)
	if err != nil {
		return fmt.Errorf("hgetall document %s: %w", path, err)
	}
	if len(m) == 0 {
		return domain.ErrDocumentNotFound
	}

	chunkCount, _ := strconv.Atoi(m["chunk_count"])
	keys := make([]string, 0, chunkCount+1)
	for ord := 0; ord < chunkCount; ord++ {
		keys = append(keys, r.chunkKey(slug, ref, ord))
	}
	keys = append(keys, docKey)

	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("del document %s: %w", path, err)
	}
	return nil
}

// Chunks returns the stored chunks of a document in ordinal order.
func (r *Repo) Chunks(ctx context.Context, slug, path string) ([]domain.Chunk, error) {
	ref := pathRef(path)

	m, err := r.store.HGetAll(ctx, r.docKey(slug, ref))
	if err != nil {
		return nil, fmt.Errorf("hgetall document %s: %w", path, err)
	}
	if len(m) == 0 {
		return nil, domain.ErrDocumentNotFound
	}

	chunkCount, _ := strconv.Atoi(m["chunk_count"])
	if chunkCount == 0 {
		return []domain.Chunk{}, nil
	}

	keys := make([]string, 0, chunkCount)
	for ord := 0; ord < chunkCount; ord++ {
		keys = append(keys, r.chunkKey(slug, ref, ord))
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi chunks %s: %w", path, err)
	}

	chunks := make([]domain.Chunk, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		c, err := chunkFromHash(h)
		if err != nil {
			return nil, fmt.Errorf("parse chunk %s: %w", keys[i], err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (r *Repo) docKey(slug, ref string) string {
	return fmt.Sprintf("%s%s:doc:%s", r.keyPrefix, slug, ref)
}

func (r *Repo) chunkKey(slug, ref string, ordinal int) string {
	return fmt.Sprintf("%s%s:chunk:%s:%d", r.keyPrefix, slug, ref, ordinal)
}

// pathRef derives a fixed-length key-safe reference from a document path.
func pathRef(path string) string {
	h := sha256.Sum256([]byte(path))
	return hex.EncodeToString(h[:8])
}
