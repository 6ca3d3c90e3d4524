// Package project persists tenants and their corpus version counters.
//
// Key layout:
//
//	{prefix}project:{slug}          project metadata hash
//	{prefix}project:{slug}:version  corpus version counter (string int64)
//	{prefix}{slug}:idx              per-tenant search index
//	{prefix}{slug}:chunk:           per-tenant chunk key prefix (indexed)
package project

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/fraim-dev/contextd/internal/db"
	"github.com/fraim-dev/contextd/internal/domain"
)

// store is the consumer interface for projects (ISP).
//
//nolint:interfacebloat // project repo owns metadata, the version counter, and index lifecycle
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase project repositories.
type Repo struct {
	store     store
	keyPrefix string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a project repository.
func New(s store, keyPrefix string, vectorDim int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, vectorDim: vectorDim, hnsw: HNSWConfig{M: 32, EFConstruct: 400}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Create stores a project: HSET metadata, seed the version counter, then
// create the tenant's chunk index. On index failure the metadata is rolled
// back via DEL.
func (r *Repo) Create(ctx context.Context, p domain.Project) error {
	slug := p.Slug()

	metaKey := r.metaKey(slug)
	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return domain.ErrProjectExists
	}

	indexDef := r.buildIndex(slug)
	hashData, err := projectToHash(p)
	if err != nil {
		return err
	}

	if err := r.store.HSet(ctx, metaKey, hashData); err != nil {
		return fmt.Errorf("hset project %s: %w", slug, err)
	}
	if err := r.store.Set(ctx, r.versionKey(slug), []byte(strconv.FormatInt(p.CorpusVersion(), 10))); err != nil {
		cleanupErr := r.store.Del(ctx, metaKey)
		return errors.Join(fmt.Errorf("seed version %s: %w", slug, err), cleanupErr)
	}

	if err := r.store.CreateIndex(ctx, indexDef); err != nil {
		cleanupErr := r.store.DelMulti(ctx, []string{metaKey, r.versionKey(slug)})
		return errors.Join(err, cleanupErr)
	}

	return nil
}

// Get retrieves a project by slug, merging in the live corpus version counter.
func (r *Repo) Get(ctx context.Context, slug string) (domain.Project, error) {
	m, err := r.store.HGetAll(ctx, r.metaKey(slug))
	if err != nil {
		return domain.Project{}, fmt.Errorf("hgetall project %s: %w", slug, err)
	}
	if len(m) == 0 {
		return domain.Project{}, domain.ErrProjectNotFound
	}

	version, err := r.CorpusVersion(ctx, slug)
	if err != nil {
		return domain.Project{}, err
	}
	return projectFromHash(m, version)
}

// List returns all projects sorted by CreatedAt.
func (r *Repo) List(ctx context.Context) ([]domain.Project, error) {
	keys, err := r.store.Scan(ctx, r.metaKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan projects: %w", err)
	}
	keys = filterMetaKeys(keys)
	if len(keys) == 0 {
		return []domain.Project{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi projects: %w", err)
	}

	projects := make([]domain.Project, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		version, err := r.versionFromStore(ctx, m["slug"])
		if err != nil {
			return nil, err
		}
		p, err := projectFromHash(m, version)
		if err != nil {
			return nil, fmt.Errorf("parse project %s: %w", keys[i], err)
		}
		projects = append(projects, p)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt() < projects[j].CreatedAt()
	})

	return projects, nil
}

// Delete removes a project, its documents and chunks, and its index.
func (r *Repo) Delete(ctx context.Context, slug string) error {
	metaKey := r.metaKey(slug)

	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", slug, err)
	}
	if !exists {
		return domain.ErrProjectNotFound
	}

	// Corpus data first, then the index, then metadata. A crash mid-way
	// leaves the project visible with a partial corpus, never orphaned data.
	dataKeys, err := r.store.Scan(ctx, r.keyPrefix+slug+":*")
	if err != nil {
		return fmt.Errorf("scan corpus %s: %w", slug, err)
	}
	if len(dataKeys) > 0 {
		if err := r.store.DelMulti(ctx, dataKeys); err != nil {
			return fmt.Errorf("del corpus %s: %w", slug, err)
		}
	}

	if err := r.store.DropIndex(ctx, r.indexName(slug)); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", slug, err)
	}

	if err := r.store.DelMulti(ctx, []string{metaKey, r.versionKey(slug)}); err != nil {
		return fmt.Errorf("del project %s: %w", slug, err)
	}
	return nil
}

// BumpVersion atomically advances the corpus version and returns the new value.
// Every committed document mutation calls this exactly once.
func (r *Repo) BumpVersion(ctx context.Context, slug string) (int64, error) {
	v, err := r.store.IncrBy(ctx, r.versionKey(slug), 1)
	if err != nil {
		return 0, fmt.Errorf("bump version %s: %w", slug, err)
	}
	return v, nil
}

// CorpusVersion returns the current corpus version. A missing counter reads
// as 1, the version every new project starts at.
func (r *Repo) CorpusVersion(ctx context.Context, slug string) (int64, error) {
	return r.versionFromStore(ctx, slug)
}

func (r *Repo) versionFromStore(ctx context.Context, slug string) (int64, error) {
	raw, err := r.store.Get(ctx, r.versionKey(slug))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("get version %s: %w", slug, err)
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version %s: %w", slug, err)
	}
	return v, nil
}

func (r *Repo) buildIndex(slug string) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     r.indexName(slug),
		Prefixes: []string{r.chunkPrefix(slug)},
		Fields: []db.IndexField{
			{Name: "content", Type: db.IndexFieldText},
			{Name: "category", Type: db.IndexFieldTag},
			{Name: "ordinal", Type: db.IndexFieldNumeric},
			{
				Name: "embedding", Type: db.IndexFieldVector,
				VectorAlgo: db.VectorHNSW, VectorDim: r.vectorDim,
				VectorDistance: db.DistanceCosine,
				VectorM:        r.hnsw.M, VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}
}

func (r *Repo) metaKey(slug string) string {
	return fmt.Sprintf("%sproject:%s", r.keyPrefix, slug)
}

func (r *Repo) versionKey(slug string) string {
	return fmt.Sprintf("%sproject:%s:version", r.keyPrefix, slug)
}

func (r *Repo) indexName(slug string) string {
	return fmt.Sprintf("%s%s:idx", r.keyPrefix, slug)
}

func (r *Repo) chunkPrefix(slug string) string {
	return fmt.Sprintf("%s%s:chunk:", r.keyPrefix, slug)
}

// filterMetaKeys drops version counter keys the meta scan pattern also matches.
func filterMetaKeys(keys []string) []string {
	out := keys[:0]
	for _, k := range keys {
		if len(k) >= len(":version") && k[len(k)-len(":version"):] == ":version" {
			continue
		}
		out = append(out, k)
	}
	return out
}
