package ratelimit

import (
	"sync"
	"time"
)

// Store tracks per-key request counts within a fixed window. Increment and
// Decrement must be atomic so concurrent requests against the same bucket
// never lose updates.
type Store interface {
	Get(key string) (count int, reset time.Time, exists bool)
	Increment(key string, reset time.Time) (count int, windowReset time.Time)
	Decrement(key string)
	Reset(key string)
}

// MemoryStore keeps windows in a mutex-guarded map. Expired windows are
// dropped lazily on access and swept periodically in the background.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count int
	reset time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{windows: make(map[string]*window)}

	go s.sweep()

	return s
}

func (s *MemoryStore) Get(key string) (int, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.live(key)
	if w == nil {
		return 0, time.Time{}, false
	}

	return w.count, w.reset, true
}

// Increment charges one request against the key's current window, opening a
// new window ending at reset when none is live. It returns the count after
// the charge and the reset of the window that was charged.
func (s *MemoryStore) Increment(key string, reset time.Time) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w := s.live(key); w != nil {
		w.count++
		return w.count, w.reset
	}

	s.windows[key] = &window{count: 1, reset: reset}

	return 1, reset
}

// Decrement rolls back one previously charged request. A key with no live
// window is left untouched.
func (s *MemoryStore) Decrement(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.live(key)
	if w == nil {
		return
	}

	if w.count--; w.count <= 0 {
		delete(s.windows, key)
	}
}

func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
}

// live returns the key's window if it has not expired, dropping it
// otherwise. Callers must hold mu.
func (s *MemoryStore) live(key string) *window {
	w, ok := s.windows[key]
	if !ok {
		return nil
	}

	if !time.Now().Before(w.reset) {
		delete(s.windows, key)
		return nil
	}

	return w
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		s.mu.Lock()
		for key, w := range s.windows {
			if now.After(w.reset) {
				delete(s.windows, key)
			}
		}
		s.mu.Unlock()
	}
}
