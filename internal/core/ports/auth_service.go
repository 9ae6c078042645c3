package ports

import (
	"context"
	"time"

	"github.com/evoquefitness/access-gateway/internal/core/domain"
)

// LoginInput carries the credentials and scope selection for a login attempt.
type LoginInput struct {
	Identifier string
	Password   string
	// Persistent selects the durable ("remember me") storage scope.
	Persistent bool
}

// LoginResult is returned on successful authentication. Callers need more
// than the session itself: the session key to mint a token from, the one-shot
// bypass token for the first guarded navigation, and the post-login signals
// from the profile.
type LoginResult struct {
	Key                string
	Session            *domain.Session
	BypassToken        string
	MustChangePassword bool
	Profile            *UserProfile
}

// AuthService authenticates against the ERP backend and keeps the persisted
// session consistent with server-side state changes.
type AuthService interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	// Logout clears the session locally. It is idempotent and never touches
	// the network.
	Logout(ctx context.Context, key string) error
	// Refresh re-fetches the profile behind the session and re-persists it in
	// whichever scope is already in use. Any failure returns (nil, nil):
	// callers keep the existing session.
	Refresh(ctx context.Context, key string) (*domain.Session, error)
	// HandleRevoked reacts to a server-side revocation for a user: every live
	// session of that user is cleared and later refresh results older than
	// the revocation are discarded.
	HandleRevoked(ctx context.Context, userID string, at time.Time)
	// HandleProfileChanged triggers a refresh of every live session of the
	// user, deduplicated while one is already running.
	HandleProfileChanged(ctx context.Context, userID string)
}
