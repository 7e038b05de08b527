package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/session"
)

// EMA rates for node quality tracking. A heartbeat pulls reputation toward
// 100 at the recovery rate; each missed liveness window decays it at the
// decay rate. Recovery is slower than decay so one beat after an outage
// cannot whitewash a bad record.
const (
	heartbeatRecoverBeta = 0.2
	offlineDecayAlpha    = 0.1
)

// SessionCloser tears down every open session on a node. Implemented by the
// session context; node usecases call it when a node goes offline.
type SessionCloser interface {
	CloseSessionsForNode(ctx context.Context, nodeID uint, reason session.CloseReason) (int, error)
}
