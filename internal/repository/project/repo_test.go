package project

import (
	"context"
	"errors"
	"testing"

	"github.com/fraim-dev/contextd/internal/db"
	"github.com/fraim-dev/contextd/internal/domain"
)

// --- Create ---

func TestCreate_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t)

	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }
	ms.hsetFn = func(_ context.Context, key string, _ map[string]string) error {
		if key != "fraim:project:acme" {
			t.Errorf("unexpected key: %s", key)
		}
		return nil
	}
	ms.setFn = func(_ context.Context, key string, value []byte) error {
		if key != "fraim:project:acme:version" {
			t.Errorf("unexpected version key: %s", key)
		}
		if string(value) != "1" {
			t.Errorf("expected seed version 1, got %s", value)
		}
		return nil
	}
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		if def.Name != "fraim:acme:idx" {
			t.Errorf("unexpected index name: %s", def.Name)
		}
		if len(def.Prefixes) != 1 || def.Prefixes[0] != "fraim:acme:chunk:" {
			t.Errorf("unexpected index prefixes: %v", def.Prefixes)
		}
		vf, ok := def.VectorField()
		if !ok {
			t.Fatal("expected a vector field in the index definition")
		}
		if vf.VectorDim != testVectorDim {
			t.Errorf("expected vector dim %d, got %d", testVectorDim, vf.VectorDim)
		}
		if vf.VectorAlgo != db.VectorHNSW || vf.VectorDistance != db.DistanceCosine {
			t.Errorf("expected HNSW/cosine vector field, got %s/%s", vf.VectorAlgo, vf.VectorDistance)
		}
		if vf.VectorM != 32 || vf.VectorEFConstruct != 400 {
			t.Errorf("expected default HNSW params 32/400, got %d/%d", vf.VectorM, vf.VectorEFConstruct)
		}
		return nil
	}

	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t)

	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }

	err := repo.Create(ctx, p)
	if !errors.Is(err, domain.ErrProjectExists) {
		t.Fatalf("expected ErrProjectExists, got %v", err)
	}
}

func TestCreate_IndexError_RollbackOK(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	p := testProject(t)

	var rolledBack bool
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return errors.New("index limit reached")
	}
	ms.delMultiFn = func(_ context.Context, keys []string) error {
		rolledBack = true
		if len(keys) != 2 {
			t.Errorf("expected meta and version keys, got %v", keys)
		}
		return nil
	}

	err := repo.Create(ctx, p)
	if err == nil {
		t.Fatal("expected error on index creation failure")
	}
	if !rolledBack {
		t.Error("expected metadata rollback")
	}
}

// --- Get ---

func TestGet_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "fraim:project:acme" {
			t.Errorf("unexpected key: %s", key)
		}
		return map[string]string{
			"id":         "8a5f01dc-3f2d-4f8e-9e54-2b1f1a2c3d4e",
			"slug":       "acme",
			"name":       "Acme Corp",
			"settings":   `{"team":"platform"}`,
			"created_at": "1700000000000",
		}, nil
	}
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if key != "fraim:project:acme:version" {
			t.Errorf("unexpected version key: %s", key)
		}
		return []byte("7"), nil
	}

	p, err := repo.Get(ctx, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Slug() != "acme" {
		t.Errorf("expected slug acme, got %s", p.Slug())
	}
	if p.CorpusVersion() != 7 {
		t.Errorf("expected corpus version 7, got %d", p.CorpusVersion())
	}
	if p.Settings()["team"] != "platform" {
		t.Errorf("unexpected settings: %v", p.Settings())
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}

	_, err := repo.Get(ctx, "ghost")
	if !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestGet_MissingVersionCounterReadsAsOne(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			"id":         "8a5f01dc-3f2d-4f8e-9e54-2b1f1a2c3d4e",
			"slug":       "acme",
			"name":       "Acme Corp",
			"created_at": "1700000000000",
		}, nil
	}
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	p, err := repo.Get(ctx, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CorpusVersion() != 1 {
		t.Errorf("expected corpus version 1, got %d", p.CorpusVersion())
	}
}

// --- BumpVersion ---

func TestBumpVersion_ReturnsNewValue(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.incrByFn = func(_ context.Context, key string, val int64) (int64, error) {
		if key != "fraim:project:acme:version" {
			t.Errorf("unexpected key: %s", key)
		}
		if val != 1 {
			t.Errorf("expected increment by 1, got %d", val)
		}
		return 8, nil
	}

	v, err := repo.BumpVersion(ctx, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 8 {
		t.Errorf("expected version 8, got %d", v)
	}
}

// --- List ---

func TestList_SkipsVersionKeysAndSortsByCreatedAt(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "fraim:project:*" {
			t.Errorf("unexpected scan pattern: %s", pattern)
		}
		return []string{
			"fraim:project:beta",
			"fraim:project:beta:version",
			"fraim:project:acme",
			"fraim:project:acme:version",
		}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		if len(keys) != 2 {
			t.Fatalf("expected version keys filtered out, got %v", keys)
		}
		return []map[string]string{
			{
				"id": "8a5f01dc-3f2d-4f8e-9e54-2b1f1a2c3d4e", "slug": "beta",
				"name": "Beta", "created_at": "1700000000002",
			},
			{
				"id": "2b1f1a2c-3d4e-4f8e-9e54-8a5f01dc3f2d", "slug": "acme",
				"name": "Acme Corp", "created_at": "1700000000001",
			},
		}, nil
	}
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("3"), nil
	}

	projects, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].Slug() != "acme" || projects[1].Slug() != "beta" {
		t.Errorf("expected sort by created_at, got %s, %s", projects[0].Slug(), projects[1].Slug())
	}
}

// --- Delete ---

func TestDelete_RemovesCorpusIndexAndMetadata(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	var droppedIndex string
	var delCalls [][]string

	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "fraim:acme:*" {
			t.Errorf("unexpected corpus scan pattern: %s", pattern)
		}
		return []string{"fraim:acme:chunk:abc:0", "fraim:acme:doc:abc"}, nil
	}
	ms.delMultiFn = func(_ context.Context, keys []string) error {
		delCalls = append(delCalls, keys)
		return nil
	}
	ms.dropIndexFn = func(_ context.Context, name string) error {
		droppedIndex = name
		return nil
	}

	if err := repo.Delete(ctx, "acme"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if droppedIndex != "fraim:acme:idx" {
		t.Errorf("unexpected dropped index: %s", droppedIndex)
	}
	if len(delCalls) != 2 {
		t.Fatalf("expected corpus delete then metadata delete, got %d calls", len(delCalls))
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }

	err := repo.Delete(ctx, "ghost")
	if !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestDelete_MissingIndexIgnored(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.dropIndexFn = func(_ context.Context, _ string) error { return db.ErrIndexNotFound }

	if err := repo.Delete(ctx, "acme"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
