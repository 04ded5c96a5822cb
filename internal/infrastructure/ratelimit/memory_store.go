package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps windows in process memory. A single mutex makes the
// check-and-increment atomic.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*window)}
}

func (s *MemoryStore) Hit(ctx context.Context, key string, max int, win time.Duration, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(win)}
		s.windows[key] = w
		return Decision{Allowed: true, Remaining: max - 1, ResetAt: w.resetAt}, nil
	}
	if w.count >= max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: max - w.count, ResetAt: w.resetAt}, nil
}

func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
