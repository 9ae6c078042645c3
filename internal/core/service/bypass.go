package service

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// bypassTTL bounds how long a freshly-minted bypass token stays redeemable.
const bypassTTL = 30 * time.Second

// BypassTokens issues the one-shot markers that let a just-logged-in caller
// through the guard before the persisted record is necessarily readable
// again. A token is consumed on first use and expires quickly either way.
type BypassTokens struct {
	mu     sync.Mutex
	issued map[string]time.Time
}

func NewBypassTokens() *BypassTokens {
	return &BypassTokens{issued: make(map[string]time.Time)}
}

// Mint issues a fresh token, pruning expired ones while it holds the lock.
func (b *BypassTokens) Mint() string {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return ""
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for t, at := range b.issued {
		if now.Sub(at) > bypassTTL {
			delete(b.issued, t)
		}
	}
	b.issued[token] = now
	return token
}

// Consume redeems a token exactly once. A second redemption, an unknown
// token, or an expired one all report false.
func (b *BypassTokens) Consume(token string) bool {
	if token == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	at, ok := b.issued[token]
	if !ok {
		return false
	}
	delete(b.issued, token)
	return time.Since(at) <= bypassTTL
}
