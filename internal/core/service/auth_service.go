package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evoquefitness/access-gateway/internal/core/domain"
	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

// AuthService authenticates against the ERP user API and normalizes the
// response into a session record.
type AuthService struct {
	directory   ports.DirectoryClient
	store       ports.SessionStore
	revocations *Revocations
	bypass      *BypassTokens
	announcer   ports.SessionAnnouncer
	audit       ports.AuditSink
	log         zerolog.Logger

	// refreshing dedupes concurrent profile-changed signals per user.
	mu         sync.Mutex
	refreshing map[string]struct{}
}

func NewAuthService(
	directory ports.DirectoryClient,
	store ports.SessionStore,
	revocations *Revocations,
	bypass *BypassTokens,
	announcer ports.SessionAnnouncer,
	audit ports.AuditSink,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		directory:   directory,
		store:       store,
		revocations: revocations,
		bypass:      bypass,
		announcer:   announcer,
		audit:       audit,
		log:         log,
		refreshing:  make(map[string]struct{}),
	}
}

// Login authenticates the credentials, persists the normalized session in the
// scope selected by input.Persistent, and returns the full result including
// the pass-through profile signals the caller needs after login.
func (s *AuthService) Login(ctx context.Context, input ports.LoginInput) (*ports.LoginResult, error) {
	if input.Identifier == "" || input.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	profile, err := s.directory.Login(ctx, input.Identifier, input.Password)
	if err != nil {
		return nil, err
	}

	session := sessionFromProfile(profile, time.Now().UTC())
	key := generateSessionKey()

	if err := s.store.Write(ctx, key, session, input.Persistent); err != nil {
		return nil, err
	}

	if s.announcer != nil {
		s.announcer.Announce(session.UserID)
	}
	s.recordEvent(session, "login", "")

	s.log.Info().
		Str("user_id", session.UserID).
		Str("email", session.Email).
		Bool("persistent", input.Persistent).
		Msg("login succeeded")

	return &ports.LoginResult{
		Key:                key,
		Session:            session,
		BypassToken:        s.bypass.Mint(),
		MustChangePassword: profile.MustChangePassword,
		Profile:            profile,
	}, nil
}

// Logout clears the session locally. It never calls the network and is
// idempotent: clearing an absent session succeeds quietly.
func (s *AuthService) Logout(ctx context.Context, key string) error {
	session, _ := s.store.Read(ctx, key)
	if err := s.store.Clear(ctx, key); err != nil {
		return err
	}
	if session != nil {
		s.recordEvent(session, "logout", "")
		s.log.Info().Str("user_id", session.UserID).Msg("logged out")
	}
	return nil
}

// Refresh fetches the latest profile behind the session and re-persists it,
// preserving whichever scope already holds the record. Every failure path
// returns (nil, nil): the caller keeps the existing session and the UI is
// never blocked on a refresh.
func (s *AuthService) Refresh(ctx context.Context, key string) (*domain.Session, error) {
	current, err := s.store.Read(ctx, key)
	if err != nil || current == nil || current.UserID == "" {
		return nil, nil
	}

	persistent, err := s.store.Persistent(ctx, key)
	if err != nil {
		return nil, nil
	}

	profile, err := s.directory.Profile(ctx, current.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", current.UserID).Msg("profile refresh failed, keeping cached session")
		return nil, nil
	}

	// A revocation signal always wins over this refresh, no matter which
	// resolved first. Same for a revocation timestamp carried by the profile
	// itself that postdates the login.
	revoked := s.revocations.NewerThan(current.UserID, current.LoginAt)
	if !revoked && !profile.SessionRevokedAt.IsZero() && profile.SessionRevokedAt.After(current.LoginAt) {
		s.revocations.Revoke(current.UserID, profile.SessionRevokedAt)
		revoked = true
	}
	if revoked {
		_ = s.store.Clear(ctx, key)
		s.recordEvent(current, "revoked", "")
		s.log.Info().Str("user_id", current.UserID).Msg("refresh discarded, session revoked")
		return nil, nil
	}

	updated := sessionFromProfile(profile, current.LoginAt)
	if err := s.store.Write(ctx, key, updated, persistent); err != nil {
		return nil, nil
	}

	s.recordEvent(updated, "refresh", "")
	return updated, nil
}

// HandleRevoked clears every live session of the user, synchronously with
// receipt of the signal. This is a security control, not best-effort.
func (s *AuthService) HandleRevoked(ctx context.Context, userID string, at time.Time) {
	s.revocations.Revoke(userID, at)
	keys := s.store.KeysForUser(userID)
	_ = s.store.ClearUser(ctx, userID)

	s.recordEvent(&domain.Session{UserID: userID}, "revoked", "")
	s.log.Info().
		Str("user_id", userID).
		Int("sessions_cleared", len(keys)).
		Time("revoked_at", at).
		Msg("session revoked by server")
}

// HandleProfileChanged refreshes each live session of the user. Signals
// arriving while a refresh for the same user is still running are dropped.
func (s *AuthService) HandleProfileChanged(ctx context.Context, userID string) {
	s.mu.Lock()
	if _, busy := s.refreshing[userID]; busy {
		s.mu.Unlock()
		return
	}
	s.refreshing[userID] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.refreshing, userID)
		s.mu.Unlock()
	}()

	for _, key := range s.store.KeysForUser(userID) {
		if _, err := s.Refresh(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("profile-changed refresh failed")
		}
	}
}

func (s *AuthService) recordEvent(session *domain.Session, kind, path string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ports.AuthEventInput{
		UserID:    session.UserID,
		Email:     session.Email,
		Kind:      kind,
		Path:      path,
		Timestamp: time.Now().UTC(),
	})
}

// sessionFromProfile maps the validated backend profile onto the session
// shape, concatenating first and last name and defaulting sectors to empty.
func sessionFromProfile(profile *ports.UserProfile, loginAt time.Time) *domain.Session {
	name := strings.TrimSpace(strings.TrimSpace(profile.FirstName) + " " + strings.TrimSpace(profile.LastName))
	if name == "" {
		name = profile.Email
	}

	sectors := profile.Sectors
	if sectors == nil {
		sectors = []string{}
	}

	level := domain.AccessLevel(profile.AccessLevel)
	if level == "" {
		level = domain.LevelStandard
	}

	return &domain.Session{
		UserID:      profile.ID,
		Email:       profile.Email,
		DisplayName: name,
		AccessLevel: level,
		Sectors:     sectors,
		LoginAt:     loginAt,
	}
}

// generateSessionKey returns an opaque 256-bit key for the stored record.
func generateSessionKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// fallback: time-derived key, still unique per login attempt
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().UTC().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
