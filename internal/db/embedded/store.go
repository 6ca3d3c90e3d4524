// Package embedded implements db.Store in process for local runs and tests,
// mirroring the redis driver's contract: hashes and KV pairs live in maps, the
// lexical branch is served by an in-memory bleve index, and the vector branch
// by a brute-force cosine scan.
package embedded

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fraim-dev/contextd/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store implements db.Store without external processes.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	kv      map[string]kvEntry
	indexes map[string]*searchIndex

	now func() time.Time
}

type kvEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewStore creates an embedded store.
func NewStore() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		kv:      make(map[string]kvEntry),
		indexes: make(map[string]*searchIndex),
		now:     time.Now,
	}
}

// Ping always succeeds for an in-process store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close releases the bleve indexes.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, idx := range s.indexes {
		idx.close()
	}
	s.indexes = make(map[string]*searchIndex)
}

// WaitForReady is immediate for an in-process store.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// --- HashStore ---

// HSet sets hash fields and feeds every index whose prefix matches the key.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hsetLocked(key, fields)
}

// HSetMulti stores multiple hashes.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if err := s.hsetLocked(item.Key, item.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) hsetLocked(key string, fields map[string]string) error {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}

	for _, idx := range s.indexes {
		if idx.matches(key) {
			if err := idx.index(key, h); err != nil {
				return &db.Error{Op: db.OpHSet, Err: err}
			}
		}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map,
// matching Redis HGETALL semantics.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

// HGetAllMulti fetches all fields for multiple hashes.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		m, err := s.HGetAll(ctx, key)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// Del deletes a key from the hash space, the KV space, and any indexes.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delLocked(key)
}

// DelMulti deletes multiple keys.
func (s *Store) DelMulti(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if err := s.delLocked(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) delLocked(key string) error {
	delete(s.hashes, key)
	delete(s.kv, key)
	for _, idx := range s.indexes {
		if idx.matches(key) {
			if err := idx.remove(key); err != nil {
				return &db.Error{Op: db.OpDel, Err: err}
			}
		}
	}
	return nil
}

// Exists checks key presence in either keyspace.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	e, ok := s.kv[key]
	if !ok {
		return false, nil
	}
	return e.expiresAt.IsZero() || s.now().Before(e.expiresAt), nil
}

// Scan returns keys matching a glob pattern.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.hashes {
		if globMatch(pattern, key) {
			keys = append(keys, key)
		}
	}
	for key := range s.kv {
		if globMatch(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// --- KVStore ---

// Get retrieves a value, honoring lazy TTL expiry.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.kv, key)
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value without expiry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvEntry{value: append([]byte(nil), value...)}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvEntry{value: append([]byte(nil), value...), expiresAt: s.now().Add(ttl)}
	return nil
}

// IncrBy atomically increments a counter and returns the new value.
func (s *Store) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := int64(0)
	if e, ok := s.kv[key]; ok {
		parsed, err := parseInt(e.value)
		if err != nil {
			return 0, &db.Error{Op: db.OpIncrBy, Err: err}
		}
		current = parsed
	}
	current += val
	s.kv[key] = kvEntry{value: []byte(formatInt(current))}
	return current, nil
}

// globMatch supports the subset of Redis MATCH globbing the repositories use:
// literal segments separated by '*' wildcards. Unlike path.Match, '*' crosses
// every character including ':'.
func globMatch(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(key, part)
		if i < 0 {
			return false
		}
		key = key[i+len(part):]
	}

	return strings.HasSuffix(key, parts[len(parts)-1])
}

func parseInt(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
