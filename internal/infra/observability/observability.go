// Package observability exposes xueban's Prometheus metrics.
//
// Every balance mutation, escrow transition and badge grant is counted here,
// so the /metrics endpoint shows how XP flows through the system:
//   - earned XP by reason and level-ups
//   - XP staked, paid out and refunded by the escrow
//   - badge grants and failing badge rules
//   - HTTP request counts and latency per route
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "xueban"

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// XPGranted tracks XP earned through the ledger, by reason.
var XPGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "xp_granted_total",
	Help:      "Total XP granted through the ledger.",
}, []string{"reason"})

// LevelUps tracks promotions.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "level_ups_total",
	Help:      "Total account level promotions.",
})

// LedgerConflicts tracks lost balance compare-and-swaps (each is retried).
var LedgerConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "conflicts_total",
	Help:      "Total balance updates that lost a concurrent race and were retried.",
})

// ─── Escrow Metrics ─────────────────────────────────────────────────────────

// EscrowEvents tracks bounty lifecycle events (created, answered, accepted, cancelled).
var EscrowEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "escrow",
	Name:      "events_total",
	Help:      "Total bounty lifecycle events.",
}, []string{"event"})

// EscrowXP tracks XP moved by the escrow (staked, paid, refunded).
var EscrowXP = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "escrow",
	Name:      "xp_total",
	Help:      "Total XP moved by the bounty escrow.",
}, []string{"flow"})

// ─── Badge Metrics ──────────────────────────────────────────────────────────

// BadgesGranted tracks new badge grants by code.
var BadgesGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "badges",
	Name:      "granted_total",
	Help:      "Total badges granted.",
}, []string{"code"})

// BadgeRuleErrors tracks badge rules that failed or panicked during evaluation.
var BadgeRuleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "badges",
	Name:      "rule_errors_total",
	Help:      "Total badge rule evaluations that failed and were skipped.",
}, []string{"code"})

// BadgeRefreshDropped tracks refresh requests dropped because the queue was full.
var BadgeRefreshDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "badges",
	Name:      "refresh_dropped_total",
	Help:      "Total badge refresh requests dropped on a full queue.",
})

// ─── Rate Limit Metrics ─────────────────────────────────────────────────────

// RateLimitRejections tracks requests refused by a rate limiter, by scope.
var RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ratelimit",
	Name:      "rejections_total",
	Help:      "Total actions refused by rate limiting.",
}, []string{"scope"})

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// HTTPRequests tracks served requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests served.",
}, []string{"route", "status"})

// HTTPLatency tracks request latency by route pattern.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"route"})

// ObserveHTTP records one served request.
func ObserveHTTP(route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}
