package ports

import "context"

// GuardState is one of the route guard's terminal render decisions.
type GuardState string

const (
	// StateLoading means the store restoration has not completed yet; the
	// caller should retry shortly rather than treat the request as denied.
	StateLoading GuardState = "loading"
	// StateRedirectLogin means no valid session backs the request.
	StateRedirectLogin GuardState = "redirect_login"
	// StateDenied means the caller is authenticated but lacks the sector.
	StateDenied GuardState = "denied"
	// StateAllowed means the protected view may render.
	StateAllowed GuardState = "allowed"
)

// GuardInput describes one guarded navigation.
type GuardInput struct {
	// Key is the session key extracted from the caller's token; empty when
	// the caller presented no credentials.
	Key string
	// Path is the requested path including query, preserved through login
	// redirects.
	Path string
	// BypassToken is the one-shot marker minted at login, if presented.
	BypassToken string
}

// GuardDecision is the outcome of evaluating one navigation.
type GuardDecision struct {
	State GuardState
	// RedirectTo is set for StateRedirectLogin and StateDenied.
	RedirectTo string
	// RemoteChecked reports whether the remote permission check answered in
	// time; false means the local resolver decided.
	RemoteChecked bool
}

// Guard gates rendering of protected views. Evaluate runs on every request,
// so a superseded navigation's in-flight check can never leak into a later
// decision: each call owns its context and its result.
type Guard interface {
	Evaluate(ctx context.Context, input GuardInput) GuardDecision
}
