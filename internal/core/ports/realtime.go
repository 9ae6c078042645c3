package ports

// SessionAnnouncer lets the auth service tell the realtime channel which user
// ids this process holds sessions for, so server-initiated invalidation
// frames can be targeted.
type SessionAnnouncer interface {
	Announce(userID string)
}
