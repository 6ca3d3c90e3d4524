// Package resultcache caches fast-path search responses under corpus-versioned
// keys. Invalidation is implicit: bumping the corpus version orphans every
// cached entry of the previous version, and TTL reclaims the space.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/db"
	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
	"github.com/fraim-dev/contextd/internal/logger"
)

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache caches search responses keyed by tenant, corpus version, and a digest
// of the normalized query and its parameters. An unreachable backend degrades
// to misses and dropped writes, never to request failures.
type Cache struct {
	store store
	// prefix is the tenant keyspace prefix shared with the repositories.
	prefix string
	ttl    time.Duration
}

// New creates a result cache.
func New(s store, prefix string, ttl time.Duration) *Cache {
	return &Cache{store: s, prefix: prefix, ttl: ttl}
}

// Get returns the cached response for a request at the given corpus version.
func (c *Cache) Get(
	ctx context.Context, req request.Request, corpusVersion int64,
) (*result.Response, bool) {
	key := c.key(req, corpusVersion)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			logger.FromContext(ctx).Warn("Result cache read failed, treating as miss",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var dto responseDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		logger.FromContext(ctx).Warn("Result cache entry corrupted, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}

	resp := dto.toDomain()
	return &resp, true
}

// Set stores a response. Errors are logged and swallowed: the caller already
// has the response, the cache write is best effort.
func (c *Cache) Set(
	ctx context.Context, req request.Request, corpusVersion int64, resp result.Response,
) {
	key := c.key(req, corpusVersion)

	data, err := json.Marshal(fromDomain(resp))
	if err != nil {
		logger.FromContext(ctx).Warn("Result cache marshal failed",
			zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		logger.FromContext(ctx).Warn("Result cache write failed",
			zap.String("key", key), zap.Error(err))
	}
}

// key builds {prefix}{slug}:v{version}:search:{digest}. The digest covers the
// normalized query plus every parameter that changes the result set.
func (c *Cache) key(req request.Request, corpusVersion int64) string {
	payload := fmt.Sprintf("%s|%d|%s|%t",
		NormalizeQuery(req.Query()), req.TopK(), req.Category(), req.UseReranker())
	h := sha256.Sum256([]byte(payload))
	digest := hex.EncodeToString(h[:8])

	return fmt.Sprintf("%s%s:v%d:search:%s", c.prefix, req.ProjectSlug(), corpusVersion, digest)
}

// NormalizeQuery lowercases and collapses whitespace so trivially different
// spellings of the same query share a cache entry.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// --- serialization ---

type chunkResultDTO struct {
	ID            string  `json:"id"`
	DocumentID    string  `json:"document_id"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	DocumentPath  string  `json:"document_path"`
	DocumentTitle string  `json:"document_title"`
	Category      string  `json:"category"`
	ChunkIndex    int     `json:"chunk_index"`
}

type responseDTO struct {
	Results       []chunkResultDTO `json:"results"`
	TotalFound    int              `json:"total_found"`
	CorpusVersion int64            `json:"corpus_version"`
}

func fromDomain(resp result.Response) responseDTO {
	results := make([]chunkResultDTO, 0, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		results = append(results, chunkResultDTO{
			ID:            r.ID().String(),
			DocumentID:    r.DocumentID().String(),
			Content:       r.Content(),
			Score:         r.Score(),
			DocumentPath:  r.DocumentPath(),
			DocumentTitle: r.DocumentTitle(),
			Category:      r.Category().String(),
			ChunkIndex:    r.ChunkIndex(),
		})
	}
	return responseDTO{
		Results:       results,
		TotalFound:    resp.TotalFound,
		CorpusVersion: resp.CorpusVersion,
	}
}

func (d responseDTO) toDomain() result.Response {
	results := make([]result.ChunkResult, 0, len(d.Results))
	for _, r := range d.Results {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		docID, err := uuid.Parse(r.DocumentID)
		if err != nil {
			continue
		}
		results = append(results, result.New(
			id, docID, r.Content, r.Score,
			r.DocumentPath, r.DocumentTitle, domain.Category(r.Category), r.ChunkIndex,
		))
	}
	return result.Response{
		Results:       results,
		TotalFound:    d.TotalFound,
		CacheHit:      true,
		CorpusVersion: d.CorpusVersion,
	}
}
