// Package ratelimit provides the shared request limiter behind the HTTP
// middleware. Limits are enforced in Redis so they hold across broker
// instances.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request identified by key may proceed within a
// sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}
