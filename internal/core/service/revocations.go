package service

import (
	"sync"
	"time"
)

// Revocations tracks the latest server-signaled revocation time per user id.
// A revocation always wins over an in-flight refresh for the same user: the
// refresh result is compared against this registry before it may re-persist,
// regardless of which of the two resolved first.
type Revocations struct {
	mu sync.RWMutex
	at map[string]time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{at: make(map[string]time.Time)}
}

// Revoke records a revocation instant for the user, keeping the newest.
func (r *Revocations) Revoke(userID string, at time.Time) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.at[userID]; !ok || at.After(current) {
		r.at[userID] = at
	}
}

// NewerThan reports whether a revocation for the user exists that is newer
// than the given login instant.
func (r *Revocations) NewerThan(userID string, loginAt time.Time) bool {
	if userID == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.at[userID]
	return ok && at.After(loginAt)
}
