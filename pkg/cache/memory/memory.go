// Package memory provides an in-memory cache.Store using
// github.com/hashicorp/golang-lru/v2 to bound the number of entries.
package memory

import (
	"context"
	"fmt"

	"avaneesh/nut-go/pkg/cache"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries is used when New is given a non-positive size
const DefaultMaxEntries = 1024

// Store implements cache.Store in process memory
type Store struct {
	entries *lru.Cache[string, cache.Rows]
}

// New creates a store holding at most maxEntries responses
func New(maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, cache.Rows](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Store{entries: entries}, nil
}

// Get implements cache.Store.Get
func (s *Store) Get(ctx context.Context, key cache.Key) (cache.Rows, bool, error) {
	rows, ok := s.entries.Get(key.String())
	if !ok {
		return nil, false, nil
	}
	return rows.Clone(), true, nil
}

// Set implements cache.Store.Set
func (s *Store) Set(ctx context.Context, key cache.Key, rows cache.Rows) error {
	s.entries.Add(key.String(), rows.Clone())
	return nil
}

// Delete implements cache.Store.Delete
func (s *Store) Delete(ctx context.Context, key cache.Key) error {
	s.entries.Remove(key.String())
	return nil
}

// Len returns the number of cached entries
func (s *Store) Len() int {
	return s.entries.Len()
}

// Close drops every entry
func (s *Store) Close() error {
	s.entries.Purge()
	return nil
}
