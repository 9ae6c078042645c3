package domain

import (
	"errors"
	"time"
)

// AccessLevel is the coarse role attribute carried by a session. Only
// Administrator has special semantics: it bypasses every sector check.
type AccessLevel string

const (
	LevelAdministrator AccessLevel = "Administrador"
	LevelStandard      AccessLevel = "Padrao"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrSessionNotFound = errors.New("session not found")
var ErrSessionMalformed = errors.New("session record malformed")
var ErrPermissionCheckTimeout = errors.New("permission check timed out")
var ErrAccessDenied = errors.New("access denied")
var ErrBackendUnavailable = errors.New("backend unavailable")

// IsAdministrator reports whether the level carries the full-access bypass.
func (l AccessLevel) IsAdministrator() bool {
	return l == LevelAdministrator
}

// Session is the authenticated identity held in memory and mirrored to the
// persistent scopes. It is either fully absent or carries a non-empty
// Email, DisplayName and LoginAt.
type Session struct {
	UserID      string      `json:"user_id,omitempty"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	AccessLevel AccessLevel `json:"access_level"`
	Sectors     []string    `json:"sectors"`
	LoginAt     time.Time   `json:"login_at"`
}

// Valid reports whether the session satisfies the minimum-shape invariant.
// Anything failing this check is treated as no session at all.
func (s *Session) Valid() bool {
	return s != nil && s.Email != "" && s.DisplayName != "" && !s.LoginAt.IsZero()
}

// Record is the stored representation of a Session: the session fields plus
// the expiry of the scope it was written to. Records missing ExpiresAt are
// legacy writes and are honoured only within LegacyWindow of LoginAt.
type Record struct {
	Session
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired evaluates the record's own expiry rule at the given instant.
func (r *Record) Expired(now time.Time) bool {
	if !r.ExpiresAt.IsZero() {
		return !now.Before(r.ExpiresAt)
	}
	return now.Sub(r.LoginAt) >= LegacyWindow
}

const (
	// ShortTTL bounds sessions written without "remember me".
	ShortTTL = 24 * time.Hour
	// LongTTL bounds "remember me" sessions.
	LongTTL = 30 * 24 * time.Hour
	// LegacyWindow validates records written before ExpiresAt existed.
	LegacyWindow = 24 * time.Hour
)
