package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the shared store behind rate limiting and ban lists.
// All operations are atomic on the store side.
type CounterStore interface {
	// IncrWindow increments key and starts its expiry when the count becomes 1.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	AddMember(ctx context.Context, set, member string) error
	RemoveMember(ctx context.Context, set, member string) error
	IsMember(ctx context.Context, set, member string) (bool, error)
	Ping(ctx context.Context) error
}
