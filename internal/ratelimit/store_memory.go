package ratelimit

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. LoadErr and SaveErr, when set, are
// returned by the corresponding calls so callers can exercise failure paths.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]Window
	saves   int

	LoadErr error
	SaveErr error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]Window)}
}

// Load returns a copy of the stored windows.
func (s *MemoryStore) Load(_ context.Context) (map[string]Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return copyWindows(s.windows), nil
}

// Save replaces the stored windows with a copy of windows.
func (s *MemoryStore) Save(_ context.Context, windows map[string]Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.windows = copyWindows(windows)
	s.saves++
	return nil
}

// Window returns the stored window for model.
func (s *MemoryStore) Window(model string) (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[model]
	return w, ok
}

// Saves reports how many successful saves have happened.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copyWindows(src map[string]Window) map[string]Window {
	dst := make(map[string]Window, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
