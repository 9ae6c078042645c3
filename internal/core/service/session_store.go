package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evoquefitness/access-gateway/internal/api/metrics"
	"github.com/evoquefitness/access-gateway/internal/core/domain"
	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

// SessionStore keeps persisted session records across two mutually-exclusive
// scopes: a volatile one that dies with the process and a durable one that
// survives restarts. Storage and parse failures never escape this type; they
// degrade to "no session" so the guard can only ever see a valid session or
// none at all.
type SessionStore struct {
	volatile ports.RecordScope
	durable  ports.RecordScope
	log      zerolog.Logger

	// byUser indexes live session keys per user id so a revocation can clear
	// all of a user's sessions at once. Rebuilt lazily as records are read.
	mu     sync.Mutex
	byUser map[string]map[string]struct{}
}

// NewSessionStore wires the two scopes. volatile is consulted first on reads.
func NewSessionStore(volatile, durable ports.RecordScope, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		volatile: volatile,
		durable:  durable,
		log:      log,
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Read returns the first valid record found, volatile scope first. Malformed
// and expired records are cleared from their scope as they are found.
func (s *SessionStore) Read(ctx context.Context, key string) (*domain.Session, error) {
	for _, scope := range []ports.RecordScope{s.volatile, s.durable} {
		raw, err := scope.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Msg("session scope read failed")
			continue
		}
		if raw == nil {
			continue
		}

		record, ok := decodeRecord(raw)
		if !ok {
			s.log.Debug().Str("key", key).Msg("malformed session record cleared")
			_ = scope.Delete(ctx, key)
			continue
		}
		if record.Expired(time.Now().UTC()) {
			s.log.Debug().Str("key", key).Str("user_id", record.UserID).Msg("expired session record cleared")
			metrics.SessionsExpiredTotal.Inc()
			_ = scope.Delete(ctx, key)
			s.unindex(record.UserID, key)
			continue
		}

		session := record.Session
		s.index(session.UserID, key)
		return &session, nil
	}
	return nil, nil
}

// Write persists the session to the scope selected by persistent and clears
// the other, so the two scopes never hold a record for the same key.
func (s *SessionStore) Write(ctx context.Context, key string, session *domain.Session, persistent bool) error {
	if !session.Valid() {
		return domain.ErrSessionMalformed
	}

	ttl := domain.ShortTTL
	target, other := s.volatile, s.durable
	if persistent {
		ttl = domain.LongTTL
		target, other = s.durable, s.volatile
	}

	record := domain.Record{
		Session:   *session,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return domain.ErrSessionMalformed
	}

	if err := target.Set(ctx, key, raw, ttl); err != nil {
		// Storage failures degrade to "no session" rather than propagating;
		// the caller keeps working and the user simply logs in again later.
		s.log.Warn().Err(err).Str("user_id", session.UserID).Msg("session write failed")
		return nil
	}
	_ = other.Delete(ctx, key)

	s.index(session.UserID, key)
	return nil
}

// Clear removes the record from both scopes. Clearing an absent key is a
// no-op.
func (s *SessionStore) Clear(ctx context.Context, key string) error {
	_ = s.volatile.Delete(ctx, key)
	_ = s.durable.Delete(ctx, key)

	s.mu.Lock()
	for userID, keys := range s.byUser {
		if _, ok := keys[key]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.byUser, userID)
			}
		}
	}
	s.mu.Unlock()
	return nil
}

// ClearUser removes every indexed session belonging to the user.
func (s *SessionStore) ClearUser(ctx context.Context, userID string) error {
	for _, key := range s.KeysForUser(userID) {
		_ = s.Clear(ctx, key)
	}
	return nil
}

// KeysForUser lists the live session keys indexed for a user id.
func (s *SessionStore) KeysForUser(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.byUser[userID]))
	for key := range s.byUser[userID] {
		keys = append(keys, key)
	}
	return keys
}

// Persistent reports which scope holds the record for key, so a refresh can
// re-persist without switching scopes.
func (s *SessionStore) Persistent(ctx context.Context, key string) (bool, error) {
	if raw, err := s.volatile.Get(ctx, key); err == nil && raw != nil {
		return false, nil
	}
	if raw, err := s.durable.Get(ctx, key); err == nil && raw != nil {
		return true, nil
	}
	return false, domain.ErrSessionNotFound
}

func (s *SessionStore) index(userID, key string) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]struct{})
	}
	s.byUser[userID][key] = struct{}{}
}

func (s *SessionStore) unindex(userID, key string) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if keys := s.byUser[userID]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.byUser, userID)
		}
	}
}

// decodeRecord parses a stored record and enforces the minimum-shape
// invariant. Unknown fields in the raw payload are dropped by the decoder;
// only the known session fields are projected through.
func decodeRecord(raw []byte) (*domain.Record, bool) {
	var record domain.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false
	}
	if !record.Session.Valid() {
		return nil, false
	}
	return &record, true
}
