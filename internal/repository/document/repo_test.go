package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fraim-dev/contextd/internal/db"
	"github.com/fraim-dev/contextd/internal/domain"
)

// --- Upsert ---

func TestUpsert_CreatesNewDocument(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	doc, chunks := testDocument(t, "install the binary", "configure the service")

	var written []db.HashSetItem
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		written = items
		return nil
	}

	created, changed, err := repo.Upsert(ctx, "acme", doc, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || !changed {
		t.Errorf("expected created=true changed=true, got %v %v", created, changed)
	}

	// 2 chunks + 1 doc meta hash
	if len(written) != 3 {
		t.Fatalf("expected 3 hash writes, got %d", len(written))
	}
	for _, item := range written[:2] {
		if !strings.HasPrefix(item.Key, "fraim:acme:chunk:") {
			t.Errorf("unexpected chunk key: %s", item.Key)
		}
		if item.Fields["document_path"] != "docs/setup.md" {
			t.Errorf("expected denormalized path, got %q", item.Fields["document_path"])
		}
		if item.Fields["category"] != "docs" {
			t.Errorf("expected denormalized category, got %q", item.Fields["category"])
		}
	}
	meta := written[2]
	if !strings.HasPrefix(meta.Key, "fraim:acme:doc:") {
		t.Errorf("unexpected doc key: %s", meta.Key)
	}
	if meta.Fields["chunk_count"] != "2" {
		t.Errorf("expected chunk_count 2, got %q", meta.Fields["chunk_count"])
	}
}

func TestUpsert_UnchangedContentShortCircuits(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	doc, chunks := testDocument(t, "install the binary")

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			"content_hash": doc.ContentHash(),
			"chunk_count":  "1",
		}, nil
	}
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		t.Fatal("unexpected write for unchanged content")
		return nil
	}

	created, changed, err := repo.Upsert(ctx, "acme", doc, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created || changed {
		t.Errorf("expected created=false changed=false, got %v %v", created, changed)
	}
}

func TestUpsert_ShorterRevisionDeletesStaleChunks(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	doc, chunks := testDocument(t, "only chunk now")

	var deleted []string
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			"content_hash": "stale-hash",
			"chunk_count":  "3",
		}, nil
	}
	ms.delMultiFn = func(_ context.Context, keys []string) error {
		deleted = keys
		return nil
	}

	created, changed, err := repo.Upsert(ctx, "acme", doc, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false for existing document")
	}
	if !changed {
		t.Error("expected changed=true for new content hash")
	}
	// Ordinals 1 and 2 from the previous 3-chunk revision.
	if len(deleted) != 2 {
		t.Fatalf("expected 2 stale chunk deletes, got %v", deleted)
	}
	for _, key := range deleted {
		if !strings.HasPrefix(key, "fraim:acme:chunk:") {
			t.Errorf("unexpected stale key: %s", key)
		}
	}
}

// --- Get ---

func TestGet_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}

	_, err := repo.Get(ctx, "acme", "missing.md")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestGet_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	doc, _ := testDocument(t, "install the binary")

	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if !strings.HasPrefix(key, "fraim:acme:doc:") {
			t.Errorf("unexpected key: %s", key)
		}
		return documentToHash(doc), nil
	}

	got, err := repo.Get(ctx, "acme", "docs/setup.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Path() != doc.Path() || got.ContentHash() != doc.ContentHash() {
		t.Errorf("round trip mismatch: got path %q hash %q", got.Path(), got.ContentHash())
	}
	if got.Category() != domain.CategoryDocs {
		t.Errorf("expected category docs, got %s", got.Category())
	}
}

// --- Delete ---

func TestDelete_RemovesDocAndChunks(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	var deleted []string
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{"chunk_count": "2"}, nil
	}
	ms.delMultiFn = func(_ context.Context, keys []string) error {
		deleted = keys
		return nil
	}

	if err := repo.Delete(ctx, "acme", "docs/setup.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2 chunks + doc meta
	if len(deleted) != 3 {
		t.Fatalf("expected 3 keys deleted, got %v", deleted)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}

	err := repo.Delete(ctx, "acme", "missing.md")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

// --- Chunks ---

func TestChunks_OrdinalOrder(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	doc, chunks := testDocument(t, "first", "second")

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return documentToHash(doc), nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		if len(keys) != 2 {
			t.Fatalf("expected 2 chunk keys, got %v", keys)
		}
		return []map[string]string{
			chunkToHash(doc, chunks[0]),
			chunkToHash(doc, chunks[1]),
		}, nil
	}

	got, err := repo.Chunks(ctx, "acme", "docs/setup.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].Ordinal() != 0 || got[1].Ordinal() != 1 {
		t.Errorf("expected ordinal order, got %d, %d", got[0].Ordinal(), got[1].Ordinal())
	}
	if got[0].Content() != "first" {
		t.Errorf("unexpected content: %q", got[0].Content())
	}
	if len(got[0].Embedding()) != 3 {
		t.Errorf("expected embedding round trip, got %v", got[0].Embedding())
	}
}
