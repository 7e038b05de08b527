package usecases

import (
	"context"
)

// TransactionManager runs a function inside one database transaction.
type TransactionManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AbuseGuard is the session-facing slice of the abuse context: connect
// gating and per-report traffic gating. Implementations record the event and
// return a forbidden error when the caller is banned or over a limit.
type AbuseGuard interface {
	CheckConnect(ctx context.Context, userID uint) error
	CheckTraffic(ctx context.Context, userID uint, deltaBytes int64) error
}

// TrafficAccumulator batches per-node relay bytes for the flush worker; the
// nodes table only sees the flushed totals.
type TrafficAccumulator interface {
	Accumulate(ctx context.Context, nodeID uint, bytes uint64) error
}
