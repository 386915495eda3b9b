package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps per-key attempt timestamps in process memory. Entries are
// pruned lazily on access; the limiter resets when the process restarts and is
// not shared across instances.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string][]time.Time)}
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	recent := s.attempts[key][:0]
	for _, at := range s.attempts[key] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}

	if len(recent) >= limit {
		s.attempts[key] = recent
		return false, nil
	}

	s.attempts[key] = append(recent, now)
	return true, nil
}

// Sweep drops keys whose every attempt is older than the retention window.
// Callers may run it periodically to bound memory on long-lived processes.
func (s *MemoryStore) Sweep(retention time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-retention)
	for key, attempts := range s.attempts {
		stale := true
		for _, at := range attempts {
			if at.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(s.attempts, key)
		}
	}
}
