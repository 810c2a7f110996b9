// cache.go - Content cache contract, merge policy and the in-memory backend

package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bosocmputer/product_identify/pkg/models"
)

// ErrCacheMiss is returned by Get when no entry exists for a fingerprint.
var ErrCacheMiss = errors.New("cache miss")

// maxMergeAttempts bounds optimistic-concurrency retries in backends that use them
const maxMergeAttempts = 5

// CacheStore is keyed only by content fingerprint; it is never user scoped.
type CacheStore interface {
	Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error)
	// Put merges entry into whatever is stored under fingerprint (see MergeEntry).
	Put(ctx context.Context, fingerprint string, entry models.CacheEntry) error
}

// MergeEntry applies the cache write policy:
//   - higher confidence wins; equal confidence means the newer write wins
//   - imagePath is never cleared by a write that lacks one
//   - updatedAt is the time of the last accepted write
//
// The second return value is false when the stored entry is unchanged.
func MergeEntry(fingerprint string, existing *models.CacheEntry, incoming models.CacheEntry) (models.CacheEntry, bool) {
	if incoming.UpdatedAt.IsZero() {
		incoming.UpdatedAt = time.Now().UTC()
	}
	incoming.Fingerprint = fingerprint

	if existing == nil {
		return incoming, true
	}

	if incoming.Best.Confidence >= existing.Best.Confidence {
		if incoming.ImagePath == "" {
			incoming.ImagePath = existing.ImagePath
		}
		return incoming, true
	}

	merged := *existing
	merged.Fingerprint = fingerprint
	if merged.ImagePath == "" && incoming.ImagePath != "" {
		merged.ImagePath = incoming.ImagePath
		merged.UpdatedAt = incoming.UpdatedAt
		return merged, true
	}
	return merged, false
}

type memoryItem struct {
	entry    models.CacheEntry
	storedAt time.Time
}

// MemoryStore keeps entries in process memory. ttl <= 0 disables expiry.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
}

// NewMemoryStore creates an empty in-memory cache
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), ttl: ttl}
}

// Get returns a copy of the stored entry
func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*models.CacheEntry, error) {
	s.mu.RLock()
	item, ok := s.items[fingerprint]
	s.mu.RUnlock()

	if !ok || s.expired(item) {
		return nil, ErrCacheMiss
	}
	entry := item.entry
	return &entry, nil
}

// Put merges under the write lock so concurrent writers cannot interleave
func (s *MemoryStore) Put(_ context.Context, fingerprint string, entry models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *models.CacheEntry
	if item, ok := s.items[fingerprint]; ok && !s.expired(item) {
		existing = &item.entry
	}
	merged, changed := MergeEntry(fingerprint, existing, entry)
	if changed {
		s.items[fingerprint] = memoryItem{entry: merged, storedAt: time.Now()}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) expired(item memoryItem) bool {
	return s.ttl > 0 && time.Since(item.storedAt) >= s.ttl
}
