// Package metrics defines and registers all custom Prometheus metrics for the
// access gateway. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register with the default Prometheus registry at import time via
// promauto; the /metrics endpoint exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "access_gateway"

// ── Guard metrics ─────────────────────────────────────────────────────────────

// GuardDecisionsTotal counts guard evaluations by terminal state.
// Labels:
//   - state: "allowed", "denied", "redirect_login", "loading"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard evaluations, by resulting state.",
	},
	[]string{"state"},
)

// RemoteCheckDuration measures the remote has-sector check end-to-end.
// Label:
//   - outcome: "ok" (remote answered) or "fallback" (timeout/error, local decision)
var RemoteCheckDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_check_duration_seconds",
		Help:      "Duration of the remote sector permission check.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"outcome"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// LoginsTotal counts login attempts by result.
// Label:
//   - result: "ok" or "rejected"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// SessionsExpiredTotal counts stored records dropped at read time for being
// past their expiry.
var SessionsExpiredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_expired_total",
		Help:      "Total number of session records dropped on read for being expired.",
	},
)

// SessionsRevokedTotal counts sessions cleared by a server-side revocation.
var SessionsRevokedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_revoked_total",
		Help:      "Total number of sessions cleared by server-signaled revocation.",
	},
)

// ── Realtime metrics ──────────────────────────────────────────────────────────

// RealtimeReconnectsTotal counts successful realtime channel (re)connects.
var RealtimeReconnectsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_reconnects_total",
		Help:      "Total number of times the realtime invalidation channel (re)connected.",
	},
)
