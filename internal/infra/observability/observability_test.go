package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ─── Metrics ────────────────────────────────────────────────────────────────

func TestObserveHTTP_CountsByRouteAndStatus(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("/api/test", "201"))

	ObserveHTTP("/api/test", 201, 3*time.Millisecond)
	ObserveHTTP("/api/test", 201, 5*time.Millisecond)

	got := testutil.ToFloat64(HTTPRequests.WithLabelValues("/api/test", "201"))
	if got-before != 2 {
		t.Errorf("requests delta = %f, want 2", got-before)
	}
}

func TestObserveHTTP_EmptyRoute(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("unmatched", "404"))
	ObserveHTTP("", 404, time.Millisecond)

	got := testutil.ToFloat64(HTTPRequests.WithLabelValues("unmatched", "404"))
	if got-before != 1 {
		t.Errorf("unmatched delta = %f, want 1", got-before)
	}
}

func TestMetricsRegistered(t *testing.T) {
	// promauto panics on duplicate registration, so reaching here means every
	// collector registered. Touch each vector to make sure labels line up.
	XPGranted.WithLabelValues("upload").Add(0)
	EscrowEvents.WithLabelValues("created").Add(0)
	EscrowXP.WithLabelValues("staked").Add(0)
	BadgesGranted.WithLabelValues("pioneer").Add(0)
	BadgeRuleErrors.WithLabelValues("pioneer").Add(0)
	RateLimitRejections.WithLabelValues("post").Add(0)

	if n := testutil.CollectAndCount(XPGranted); n < 1 {
		t.Errorf("XPGranted series = %d, want >= 1", n)
	}
}
