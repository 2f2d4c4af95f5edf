package ingest

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process write-once dedup store, for single-instance development and
// tests. Its contents are lost on restart.
type MemoryStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time)}
}

func (m *MemoryStore) RecordFirstSeen(ctx context.Context, hash string, seenAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if _, ok := m.seen[hash]; ok {
		return false, nil
	}
	m.seen[hash] = seenAt
	return true, nil
}

// FirstSeen returns the stored timestamp for hash.
func (m *MemoryStore) FirstSeen(hash string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.seen[hash]
	return t, ok
}

// Writes returns how many write attempts the store has received.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
