package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local sliding window. Set Err to simulate an unreachable store.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	Err  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: map[string][]time.Time{}}
}

func (m *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, time.Time{}, m.Err
	}
	cutoff := now.Add(-window)
	kept := m.hits[key][:0]
	for _, h := range m.hits[key] {
		if h.After(cutoff) {
			kept = append(kept, h)
		}
	}
	kept = append(kept, now)
	m.hits[key] = kept
	return int64(len(kept)), kept[0], nil
}
