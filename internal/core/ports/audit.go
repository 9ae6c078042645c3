package ports

import (
	"context"
	"time"
)

// AuthEventInput is one entry for the auth audit trail.
type AuthEventInput struct {
	UserID    string
	Email     string
	Kind      string // "login", "logout", "refresh", "revoked", "denied"
	Path      string
	Timestamp time.Time
}

// AuditRepository persists auth events. Failures are logged, never fatal.
type AuditRepository interface {
	Insert(ctx context.Context, event *AuthEventInput) error
}

// AuditSink is the interface services use to emit auth events without
// blocking on persistence.
type AuditSink interface {
	Record(event AuthEventInput)
}
