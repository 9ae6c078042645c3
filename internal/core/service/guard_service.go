package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/evoquefitness/access-gateway/internal/api/metrics"
	"github.com/evoquefitness/access-gateway/internal/core/domain"
	"github.com/evoquefitness/access-gateway/internal/core/ports"
	"github.com/evoquefitness/access-gateway/internal/core/sector"
)

// DefaultRemoteCheckTimeout bounds the remote has-sector call. Past it, the
// check is indeterminate and the local resolver decides on the cached session.
const DefaultRemoteCheckTimeout = 3 * time.Second

const (
	loginPath  = "/login"
	deniedPath = "/access-denied"
)

// GuardService is the composed state machine gating every protected view. It
// is evaluated per navigation, so each decision is computed from that
// request's own context and can never be mutated by a check issued for an
// earlier, abandoned path.
type GuardService struct {
	store       ports.SessionStore
	directory   ports.DirectoryClient
	revocations *Revocations
	bypass      *BypassTokens
	remoteCheck time.Duration
	log         zerolog.Logger
	ready       atomic.Bool
}

func NewGuardService(
	store ports.SessionStore,
	directory ports.DirectoryClient,
	revocations *Revocations,
	bypass *BypassTokens,
	remoteCheckTimeout time.Duration,
	log zerolog.Logger,
) *GuardService {
	if remoteCheckTimeout <= 0 {
		remoteCheckTimeout = DefaultRemoteCheckTimeout
	}
	return &GuardService{
		store:       store,
		directory:   directory,
		revocations: revocations,
		bypass:      bypass,
		remoteCheck: remoteCheckTimeout,
		log:         log,
	}
}

// SetReady marks the store restoration as complete. Until then every
// evaluation reports StateLoading.
func (g *GuardService) SetReady() {
	g.ready.Store(true)
}

// Evaluate runs the guard state machine for one navigation.
func (g *GuardService) Evaluate(ctx context.Context, input ports.GuardInput) ports.GuardDecision {
	if !g.ready.Load() {
		return ports.GuardDecision{State: ports.StateLoading}
	}

	toLogin := ports.GuardDecision{
		State:      ports.StateRedirectLogin,
		RedirectTo: loginPath + "?redirect=" + url.QueryEscape(input.Path),
	}
	toDenied := ports.GuardDecision{State: ports.StateDenied, RedirectTo: deniedPath}
	allowed := ports.GuardDecision{State: ports.StateAllowed}

	var session *domain.Session
	if input.Key != "" {
		session, _ = g.store.Read(ctx, input.Key)
	}

	if session == nil {
		// The one-shot bypass covers the navigation immediately after login,
		// before the fresh record is necessarily readable again.
		if g.bypass.Consume(input.BypassToken) {
			return allowed
		}
		return toLogin
	}

	// A revocation newer than the login wins over whatever the store holds.
	if g.revocations.NewerThan(session.UserID, session.LoginAt) {
		_ = g.store.Clear(ctx, input.Key)
		return toLogin
	}

	path := pathOnly(input.Path)
	req := sector.FromPath(path)
	if req == nil {
		// Protected but not sector-scoped: any valid session will do.
		return allowed
	}

	if session.AccessLevel.IsAdministrator() {
		return allowed
	}
	if sector.AdminOnly(path) {
		return toDenied
	}
	if req.Sector == "" {
		// Unknown slug: nothing can satisfy it.
		return toDenied
	}

	ok, remote := g.checkSector(ctx, session, req)
	if !ok {
		decision := toDenied
		decision.RemoteChecked = remote
		return decision
	}
	allowed.RemoteChecked = remote
	return allowed
}

// checkSector asks the backend whether the user holds the sector, bounded by
// the remote-check timeout. On timeout or error the local resolver decides on
// the cached session; the caller must never wait on an unreachable backend.
func (g *GuardService) checkSector(ctx context.Context, session *domain.Session, req *sector.Requirement) (allowed, remote bool) {
	checkCtx, cancel := context.WithTimeout(ctx, g.remoteCheck)
	defer cancel()

	started := time.Now()
	ok, err := g.directory.HasSector(checkCtx, session.UserID, req.Slug)
	if err == nil {
		metrics.RemoteCheckDuration.WithLabelValues("ok").Observe(time.Since(started).Seconds())
		return ok, true
	}
	metrics.RemoteCheckDuration.WithLabelValues("fallback").Observe(time.Since(started).Seconds())

	if errors.Is(err, context.DeadlineExceeded) {
		err = domain.ErrPermissionCheckTimeout
	}
	g.log.Warn().
		Err(err).
		Str("user_id", session.UserID).
		Str("slug", req.Slug).
		Msg("remote sector check unavailable, using local decision")

	return sector.Allowed(req.Sector, session.Sectors), false
}

// pathOnly strips the query component so path matching sees the bare path.
func pathOnly(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}
