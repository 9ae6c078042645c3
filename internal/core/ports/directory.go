package ports

import (
	"context"
	"time"
)

// UserProfile is the validated shape of the ERP user API responses. The raw
// payload is parsed at the boundary; anything structurally off becomes
// domain.ErrSessionMalformed instead of leaking loosely-typed fields inward.
type UserProfile struct {
	ID                 string
	Email              string
	FirstName          string
	LastName           string
	AccessLevel        string
	Sectors            []string
	MustChangePassword bool
	// SessionRevokedAt is set when the server has revoked the user's
	// sessions; zero otherwise.
	SessionRevokedAt time.Time
}

// DirectoryClient talks to the ERP backend's user API.
type DirectoryClient interface {
	// Login exchanges credentials for a profile. Rejected credentials yield
	// domain.ErrInvalidCredentials wrapped with the server-provided message.
	Login(ctx context.Context, identifier, password string) (*UserProfile, error)
	// Profile fetches the latest profile for a user id.
	Profile(ctx context.Context, userID string) (*UserProfile, error)
	// HasSector asks the backend whether the user may access the sector slug.
	HasSector(ctx context.Context, userID, slug string) (bool, error)
}
