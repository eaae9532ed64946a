// Package cache holds last-known metadata descriptors for external
// entities (users, channels) with cache-aside semantics: hits are served
// from memory, a miss triggers exactly one backing fetch.
package cache

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kittoju/flume/internal/errors"
)

// Fetcher resolves a descriptor for a key from the platform API.
type Fetcher func(ctx context.Context, key string) (any, error)

// Policy decides which keys to discard after a store. The default
// KeepAll policy never evicts, matching the lifetime-of-the-connector
// semantics the pipeline assumes.
type Policy interface {
	// OnStore is called with the stored key and the resulting entry
	// count. Returned keys are removed from the cache.
	OnStore(key string, size int) []string
}

// KeepAll retains every entry for the life of the cache.
type KeepAll struct{}

func (KeepAll) OnStore(string, int) []string { return nil }

// Store is a metadata cache. Concurrent lookups for the same missing
// key share a single in-flight fetch.
type Store struct {
	mu      sync.RWMutex
	entries map[string]any
	group   singleflight.Group
	fetch   Fetcher
	policy  Policy
}

// New builds a Store backed by fetch. A nil policy means never evict.
func New(fetch Fetcher, policy Policy) *Store {
	if policy == nil {
		policy = KeepAll{}
	}
	return &Store{
		entries: make(map[string]any),
		fetch:   fetch,
		policy:  policy,
	}
}

// Lookup returns the cached descriptor for key, fetching and storing it
// on a miss. A failed fetch surfaces as an error and leaves the cache
// untouched, so a later lookup may retry.
func (s *Store) Lookup(ctx context.Context, key string) (any, error) {
	if key == "" {
		return nil, errors.NotFound("empty metadata key")
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}

	if s.fetch == nil {
		return nil, errors.NotFound("no fetcher for key " + key)
	}

	ch := s.group.DoChan(key, func() (any, error) {
		value, err := s.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		s.store(key, value)
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, errors.Wrap(res.Err, "metadata fetch for "+key)
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the cached descriptor without triggering a fetch.
func (s *Store) Peek(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Seed stores a descriptor directly, e.g. from a connect-time roster.
func (s *Store) Seed(key string, value any) {
	if key == "" {
		return
	}
	s.store(key, value)
}

// Len reports the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) store(key string, value any) {
	s.mu.Lock()
	s.entries[key] = value
	evict := s.policy.OnStore(key, len(s.entries))
	for _, k := range evict {
		delete(s.entries, k)
	}
	s.mu.Unlock()

	if len(evict) > 0 {
		slog.Debug("Cache evicted entries", "count", len(evict))
	}
}
