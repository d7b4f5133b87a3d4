package ports

import (
	"context"
	"time"
)

// DenylistStore keeps revocation markers keyed by access-token jti with a
// TTL matching the token's remaining lifetime. This allows logout to take
// effect without token introspection on every call.
type DenylistStore interface {
	// Deny is idempotent; when called twice for the same jti the larger TTL
	// wins, so an active denial is never shortened.
	Deny(ctx context.Context, jti string, ttl time.Duration) error
	IsDenied(ctx context.Context, jti string) (bool, error)
}

// RateCounterStore maintains fixed-window request counters. Increment is
// atomic per key; whichever caller observes count==1 owns setting the window
// TTL so later requests cannot push the reset forward.
type RateCounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}
