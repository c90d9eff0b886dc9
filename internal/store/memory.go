package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore keeps entries in a map. Expiry is checked lazily on access.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string, v any) (bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if entry.expired(s.now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(entry.payload, v); err != nil {
		return false, fmt.Errorf("failed to decode stored value: %w", err)
	}
	return true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	entry, err := s.encode(v, ttl)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	entry, err := s.encode(v, ttl)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok && !existing.expired(s.now()) {
		return false, nil
	}
	s.entries[key] = entry
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) encode(v any, ttl time.Duration) (memoryEntry, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return memoryEntry{}, fmt.Errorf("failed to encode value: %w", err)
	}

	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	return entry, nil
}
