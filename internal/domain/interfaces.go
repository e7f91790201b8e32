package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// RateLimiter admits at most one event per interval for a key.
type RateLimiter interface {
	// Allow reports whether an event for key may proceed now. A true result
	// consumes the key's slot for the interval.
	Allow(ctx context.Context, key string, interval time.Duration) (bool, error)
	// Release gives the slot back, for events that were admitted but failed.
	Release(ctx context.Context, key string) error
}

// BadgeNotifier is told when an account did something that may satisfy a
// badge rule. Implementations must not block.
type BadgeNotifier interface {
	Notify(accountID int64)
}
