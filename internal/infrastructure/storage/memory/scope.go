// Package memory implements the volatile session scope: records live only as
// long as the process, which renders the browser's tab-scoped storage on the
// server side.
package memory

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Scope is an in-process key-value scope with per-key TTL.
type Scope struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewScope creates the scope and starts its background janitor.
func NewScope() *Scope {
	s := &Scope{entries: make(map[string]entry)}
	go s.cleanupLoop()
	return s
}

// Get returns the stored value, or (nil, nil) when the key is absent or past
// its TTL. Expired entries are dropped on read.
func (s *Scope) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, nil
	}
	return e.value, nil
}

func (s *Scope) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *Scope) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *Scope) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for key, e := range s.entries {
			if now.After(e.expiresAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}
