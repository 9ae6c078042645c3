package ports

import (
	"context"
	"time"

	"github.com/evoquefitness/access-gateway/internal/core/domain"
)

// RecordScope is a single key-value storage scope for persisted session
// records. Two scopes exist per deployment: a volatile one that dies with the
// process and a durable one that survives restarts. Implementations must
// treat a missing key as (nil, nil), not as an error.
type RecordScope interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SessionStore reads and writes persisted session records across the two
// scopes. It performs no backend I/O and never lets a storage or parse
// failure escape: anything unreadable degrades to "no session".
type SessionStore interface {
	// Read returns the first valid record found (volatile scope first),
	// clearing malformed or expired records as it goes. A nil session with a
	// nil error means no session.
	Read(ctx context.Context, key string) (*domain.Session, error)
	// Write persists the session to the scope selected by persistent and
	// clears the other scope, so at most one scope holds a record.
	Write(ctx context.Context, key string, session *domain.Session, persistent bool) error
	// Clear removes the record from both scopes. Clearing an absent session
	// is a no-op.
	Clear(ctx context.Context, key string) error
	// ClearUser removes every live session belonging to the given user id.
	ClearUser(ctx context.Context, userID string) error
	// KeysForUser lists the live session keys for a user id.
	KeysForUser(userID string) []string
	// Persistent reports which scope currently holds the record, so a
	// refresh can re-persist without switching scopes.
	Persistent(ctx context.Context, key string) (bool, error)
}
