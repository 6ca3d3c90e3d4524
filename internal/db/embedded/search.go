package embedded

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"

	"github.com/fraim-dev/contextd/internal/db"
)

// searchIndex pairs an index definition with a bleve in-memory index for the
// TEXT fields. TAG and VECTOR fields are evaluated straight off the hashes.
type searchIndex struct {
	def   *db.IndexDefinition
	bleve bleve.Index
}

func newSearchIndex(def *db.IndexDefinition) (*searchIndex, error) {
	mapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	for _, f := range def.Fields {
		switch f.Type {
		case db.IndexFieldText:
			fm := bleve.NewTextFieldMapping()
			docMapping.AddFieldMappingsAt(f.Name, fm)
		case db.IndexFieldTag:
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
			docMapping.AddFieldMappingsAt(f.Name, fm)
		}
	}
	mapping.DefaultMapping = docMapping

	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &searchIndex{def: def, bleve: idx}, nil
}

func (si *searchIndex) close() {
	_ = si.bleve.Close()
}

func (si *searchIndex) matches(key string) bool {
	for _, p := range si.def.Prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// index validates the vector contract and feeds the text/tag fields to bleve.
func (si *searchIndex) index(key string, fields map[string]string) error {
	doc := make(map[string]interface{})
	for _, f := range si.def.Fields {
		val, ok := fields[f.Name]
		if !ok {
			continue
		}
		switch f.Type {
		case db.IndexFieldText, db.IndexFieldTag:
			doc[f.Name] = val
		case db.IndexFieldVector:
			if len(val)%4 != 0 || len(val)/4 != f.VectorDim {
				return fmt.Errorf("vector field %s: expected dim %d, got %d bytes",
					f.Name, f.VectorDim, len(val))
			}
		}
	}
	if len(doc) == 0 {
		return nil
	}
	return si.bleve.Index(key, doc)
}

func (si *searchIndex) remove(key string) error {
	return si.bleve.Delete(key)
}

// --- IndexManager ---

// CreateIndex registers a search index over matching hash keys. Existing
// matching hashes are back-filled, mirroring FT.CREATE behavior.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}

	idx, err := newSearchIndex(def)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	for key, h := range s.hashes {
		if idx.matches(key) {
			if err := idx.index(key, h); err != nil {
				idx.close()
				return &db.Error{Op: db.OpCreateIndex, Err: err}
			}
		}
	}

	s.indexes[def.Name] = idx
	return nil
}

// DropIndex removes a search index by name.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	idx.close()
	delete(s.indexes, name)
	return nil
}

// IndexExists reports whether the named index is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// --- Searcher ---

// SearchKNN scans matching hashes, applies the tag filters, and ranks by
// cosine similarity against the query vector.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, db.ErrIndexNotFound
	}

	vf, ok := idx.def.VectorField()
	if !ok {
		return nil, fmt.Errorf("index %s has no vector field", q.IndexName)
	}
	if len(q.Vector) != vf.VectorDim {
		return nil, fmt.Errorf("query vector: expected dim %d, got %d", vf.VectorDim, len(q.Vector))
	}

	type scoredKey struct {
		key   string
		score float64
	}
	var hits []scoredKey

	for key, h := range s.hashes {
		if !idx.matches(key) || !tagsMatch(h, q.Filters) {
			continue
		}
		raw, ok := h[vf.Name]
		if !ok {
			continue
		}
		vec := bytesToVector(raw)
		if len(vec) != vf.VectorDim {
			continue
		}
		hits = append(hits, scoredKey{key: key, score: cosineSimilarity(q.Vector, vec)})
	}

	// Stable order for equal similarities keeps the fused result deterministic.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].key < hits[j].key
	})
	if len(hits) > q.K {
		hits = hits[:q.K]
	}

	entries := make([]db.SearchEntry, 0, len(hits))
	for _, hit := range hits {
		entries = append(entries, db.SearchEntry{
			Key:    hit.key,
			Score:  max(0, hit.score),
			Fields: selectFields(s.hashes[hit.key], q.ReturnFields),
		})
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

// SearchText serves the lexical branch via bleve, then applies the tag filters
// against the hashes so both branches see identical restrictions.
func (s *Store) SearchText(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, db.ErrIndexNotFound
	}

	textField := ""
	for _, f := range idx.def.Fields {
		if f.Type == db.IndexFieldText {
			textField = f.Name
			break
		}
	}
	if textField == "" {
		return nil, fmt.Errorf("index %s has no text field", q.IndexName)
	}

	match := bleve.NewMatchQuery(q.Query)
	match.SetField(textField)

	query := bleve.NewConjunctionQuery(match)
	for _, f := range q.Filters {
		term := bleve.NewTermQuery(f.Value)
		term.SetField(f.Field)
		query.AddQuery(term)
	}

	req := bleve.NewSearchRequest(query)
	req.Size = q.TopK

	res, err := idx.bleve.Search(req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h, ok := s.hashes[hit.ID]
		if !ok {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    hit.ID,
			Score:  hit.Score,
			Fields: selectFields(h, q.ReturnFields),
		})
	}
	return &db.SearchResult{Total: int(res.Total), Entries: entries}, nil
}

func tagsMatch(h map[string]string, filters []db.TagFilter) bool {
	for _, f := range filters {
		if h[f.Field] != f.Value {
			return false
		}
	}
	return true
}

func selectFields(h map[string]string, want []string) map[string]string {
	out := make(map[string]string)
	if len(want) == 0 {
		for k, v := range h {
			out[k] = v
		}
		return out
	}
	for _, k := range want {
		if v, ok := h[k]; ok {
			out[k] = v
		}
	}
	return out
}

func bytesToVector(raw string) []float32 {
	if len(raw)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(raw[i*4 : i*4+4])))
	}
	return vec
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
