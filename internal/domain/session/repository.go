package session

import (
	"context"
	"time"
)

// NetworkStats aggregates transparency totals over the session table.
type NetworkStats struct {
	ActiveSessions  int64
	BytesRelayed24h uint64
	SessionsClosed  int64
}

type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id uint) (*Session, error)
	GetBySID(ctx context.Context, sid string) (*Session, error)
	Update(ctx context.Context, session *Session) error

	ListActiveByNode(ctx context.Context, nodeID uint) ([]*Session, error)
	ListActiveByUser(ctx context.Context, userID uint) ([]*Session, error)
	ListActive(ctx context.Context, limit int) ([]*Session, error)
	ListClosedSince(ctx context.Context, since time.Time, limit int) ([]*Session, error)

	// BeginClose runs the exactly-once close flip: a conditional update that
	// moves the session to CLOSING only if it is still open. It returns false
	// when another caller already won the flip, making repeated close signals
	// no-ops.
	BeginClose(ctx context.Context, sessionID uint, reason CloseReason) (bool, error)

	// ListMatchedBefore returns MATCHED sessions created before the cutoff
	// that never received a traffic report; the grace sweep times them out.
	ListMatchedBefore(ctx context.Context, cutoff time.Time) ([]*Session, error)

	// ListActiveAssignedIPs returns the virtual IPs held by open sessions,
	// for collision-free assignment.
	ListActiveAssignedIPs(ctx context.Context) ([]string, error)

	CountActive(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*NetworkStats, error)
}
