// Package idempotency caches responses to mutating requests so a retry
// carrying the same key replays the original outcome instead of
// executing the handler twice.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// CachedResponse is the replayable part of a completed request.
type CachedResponse struct {
	Status      int       `json:"status"`
	Body        []byte    `json:"body"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store persists cached responses keyed by composite idempotency key.
type Store interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error
	// Purge drops entries that expired before now and reports how many
	// were removed. Backends with native TTLs may treat it as a no-op.
	Purge(ctx context.Context, now time.Time) (int, error)
}

type memoryEntry struct {
	response  CachedResponse
	expiresAt time.Time
}

// MemoryStore is the in-process Store used when Redis is unavailable.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{entries: map[string]memoryEntry{}, clock: clock}
}

// Get returns the cached response for key if it has not expired.
func (s *MemoryStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || s.clock().After(entry.expiresAt) {
		return nil, false, nil
	}
	response := entry.response
	return &response, true, nil
}

// Set stores the response under key for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, response *CachedResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{
		response:  *response,
		expiresAt: s.clock().Add(ttl),
	}
	return nil
}

// Purge removes entries that expired before now.
func (s *MemoryStore) Purge(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live plus expired entries held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
