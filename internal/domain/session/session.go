// Package session holds the peer session aggregate: one matched client-node
// relay instance with its own lifecycle and credit accounting. A session is
// owned exclusively by the supervisor driving it until closure, after which
// it is read-only history.
package session

import (
	"fmt"
	"time"

	"github.com/worldvpn/broker/internal/shared/id"
)

// Session represents one client-node match from reservation to settlement.
// bytesTransferred is cumulative and monotonically non-decreasing; the
// credits fields are running projections until close fixes the final values.
type Session struct {
	id                 uint
	sid                string
	nodeID             uint
	nodeOwnerID        *uint
	userID             uint
	clientCountry      string
	clientIdentityHash string
	trafficClass       TrafficClass
	protocol           string
	assignedIP         string
	serverEndpoint     string
	bytesTransferred   uint64
	creditsSpent       int64
	creditsEarned      int64
	status             Status
	closeReason        *CloseReason
	settled            bool
	startedAt          time.Time
	lastReportAt       *time.Time
	endedAt            *time.Time
	version            int
	createdAt          time.Time
	updatedAt          time.Time
}

// NewSession creates a session in REQUESTED state for a client request that
// passed the pre-match checks. The node is bound by Match once a capacity
// slot is reserved.
func NewSession(userID uint, clientCountry, clientIdentityHash string, trafficClass TrafficClass, protocol string) (*Session, error) {
	if userID == 0 {
		return nil, fmt.Errorf("client user ID is required")
	}
	if !trafficClass.IsValid() {
		return nil, fmt.Errorf("invalid traffic class: %s", trafficClass)
	}
	if protocol == "" {
		return nil, fmt.Errorf("protocol is required")
	}

	sid, err := id.NewSessionSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session SID: %w", err)
	}

	now := time.Now().UTC()
	return &Session{
		sid:                sid,
		userID:             userID,
		clientCountry:      clientCountry,
		clientIdentityHash: clientIdentityHash,
		trafficClass:       trafficClass,
		protocol:           protocol,
		status:             StatusRequested,
		startedAt:          now,
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// ReconstructSession rebuilds a session from persistence.
func ReconstructSession(
	sessionID uint,
	sid string,
	nodeID uint,
	nodeOwnerID *uint,
	userID uint,
	clientCountry string,
	clientIdentityHash string,
	trafficClass TrafficClass,
	protocol string,
	assignedIP string,
	serverEndpoint string,
	bytesTransferred uint64,
	creditsSpent int64,
	creditsEarned int64,
	status Status,
	closeReason *CloseReason,
	settled bool,
	startedAt time.Time,
	lastReportAt *time.Time,
	endedAt *time.Time,
	version int,
	createdAt, updatedAt time.Time,
) (*Session, error) {
	if sessionID == 0 {
		return nil, fmt.Errorf("session ID cannot be zero")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid session status: %s", status)
	}
	if !trafficClass.IsValid() {
		return nil, fmt.Errorf("invalid traffic class: %s", trafficClass)
	}
	if closeReason != nil && !closeReason.IsValid() {
		return nil, fmt.Errorf("invalid close reason: %s", *closeReason)
	}

	return &Session{
		id:                 sessionID,
		sid:                sid,
		nodeID:             nodeID,
		nodeOwnerID:        nodeOwnerID,
		userID:             userID,
		clientCountry:      clientCountry,
		clientIdentityHash: clientIdentityHash,
		trafficClass:       trafficClass,
		protocol:           protocol,
		assignedIP:         assignedIP,
		serverEndpoint:     serverEndpoint,
		bytesTransferred:   bytesTransferred,
		creditsSpent:       creditsSpent,
		creditsEarned:      creditsEarned,
		status:             status,
		closeReason:        closeReason,
		settled:            settled,
		startedAt:          startedAt,
		lastReportAt:       lastReportAt,
		endedAt:            endedAt,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}, nil
}

// ID returns the internal numeric ID.
func (s *Session) ID() uint { return s.id }

// SID returns the external session identifier.
func (s *Session) SID() string { return s.sid }

// NodeID returns the matched node's internal ID (zero before match).
func (s *Session) NodeID() uint { return s.nodeID }

// NodeOwnerID returns the node owner's ID, nil for public gateways.
// Denormalized at match time for the settlement lookup.
func (s *Session) NodeOwnerID() *uint { return s.nodeOwnerID }

// UserID returns the client's internal ID.
func (s *Session) UserID() uint { return s.userID }

// ClientCountry returns the anonymized client country.
func (s *Session) ClientCountry() string { return s.clientCountry }

// ClientIdentityHash returns the anonymized client identity.
func (s *Session) ClientIdentityHash() string { return s.clientIdentityHash }

// TrafficClass returns the declared traffic class.
func (s *Session) TrafficClass() TrafficClass { return s.trafficClass }

// Protocol returns the tunnel protocol tag.
func (s *Session) Protocol() string { return s.protocol }

// AssignedIP returns the virtual IP issued at match.
func (s *Session) AssignedIP() string { return s.assignedIP }

// ServerEndpoint returns the node endpoint issued at match.
func (s *Session) ServerEndpoint() string { return s.serverEndpoint }

// BytesTransferred returns the cumulative relayed bytes.
func (s *Session) BytesTransferred() uint64 { return s.bytesTransferred }

// CreditsSpent returns the client spend projection (final once closed).
func (s *Session) CreditsSpent() int64 { return s.creditsSpent }

// CreditsEarned returns the owner earn projection (final once closed).
func (s *Session) CreditsEarned() int64 { return s.creditsEarned }

// Status returns the lifecycle state.
func (s *Session) Status() Status { return s.status }

// CloseReason returns why the session ended, nil while open.
func (s *Session) CloseReason() *CloseReason { return s.closeReason }

// Settled reports whether ledger settlement has been applied.
func (s *Session) Settled() bool { return s.settled }

// Active reports whether the session still occupies a capacity slot.
func (s *Session) Active() bool { return s.status.IsOpen() }

// StartedAt returns when the session was requested.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// LastReportAt returns the time of the last accepted traffic report.
func (s *Session) LastReportAt() *time.Time { return s.lastReportAt }

// EndedAt returns when the session closed.
func (s *Session) EndedAt() *time.Time { return s.endedAt }

// Version returns the aggregate version for optimistic locking.
func (s *Session) Version() int { return s.version }

// CreatedAt returns the row creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last mutation time.
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

// SetID sets the session ID after insertion (persistence layer use only).
func (s *Session) SetID(sessionID uint) error {
	if s.id != 0 {
		return fmt.Errorf("session ID is already set")
	}
	if sessionID == 0 {
		return fmt.Errorf("session ID cannot be zero")
	}
	s.id = sessionID
	return nil
}

// Match binds the session to a node whose capacity slot the matcher has
// already reserved, and issues the endpoint and virtual IP.
func (s *Session) Match(nodeID uint, nodeOwnerID *uint, assignedIP, serverEndpoint string) error {
	if !s.status.CanTransitionTo(StatusMatched) {
		return fmt.Errorf("cannot match session in status %s", s.status)
	}
	if nodeID == 0 {
		return fmt.Errorf("node ID is required")
	}
	if assignedIP == "" || serverEndpoint == "" {
		return fmt.Errorf("assigned IP and server endpoint are required")
	}

	s.nodeID = nodeID
	s.nodeOwnerID = nodeOwnerID
	s.assignedIP = assignedIP
	s.serverEndpoint = serverEndpoint
	s.status = StatusMatched
	s.updatedAt = time.Now().UTC()
	s.version++
	return nil
}

// ReportTraffic applies a cumulative byte report. Regressions are rejected
// without state change; the first accepted report activates the session.
func (s *Session) ReportTraffic(cumulativeBytes uint64, now time.Time) error {
	if s.status != StatusMatched && s.status != StatusActive {
		return fmt.Errorf("cannot report traffic on session in status %s", s.status)
	}
	if cumulativeBytes < s.bytesTransferred {
		return fmt.Errorf("byte counter regression: reported %d below recorded %d", cumulativeBytes, s.bytesTransferred)
	}

	if s.status == StatusMatched {
		s.status = StatusActive
	}

	now = now.UTC()
	s.bytesTransferred = cumulativeBytes
	s.lastReportAt = &now
	s.updatedAt = now
	s.version++
	return nil
}

// UpdateProjection records the running credit projections computed from the
// settlement policy.
func (s *Session) UpdateProjection(spent, earned int64) {
	s.creditsSpent = spent
	s.creditsEarned = earned
	s.updatedAt = time.Now().UTC()
	s.version++
}

// BeginClose moves an open session to CLOSING with the given reason. The
// persistence layer runs this as a conditional flip so exactly one caller
// wins when close signals race.
func (s *Session) BeginClose(reason CloseReason) error {
	if !reason.IsValid() {
		return fmt.Errorf("invalid close reason: %s", reason)
	}
	if !s.status.CanTransitionTo(StatusClosing) {
		return fmt.Errorf("cannot close session in status %s", s.status)
	}

	s.status = StatusClosing
	s.closeReason = &reason
	s.updatedAt = time.Now().UTC()
	s.version++
	return nil
}

// CompleteClose finalizes a CLOSING session after ledger settlement, fixing
// the final credit amounts. The session becomes immutable history.
func (s *Session) CompleteClose(finalSpent, finalEarned int64, now time.Time) error {
	if !s.status.CanTransitionTo(StatusClosed) {
		return fmt.Errorf("cannot complete close of session in status %s", s.status)
	}

	now = now.UTC()
	s.creditsSpent = finalSpent
	s.creditsEarned = finalEarned
	s.status = StatusClosed
	s.settled = true
	s.endedAt = &now
	s.updatedAt = now
	s.version++
	return nil
}

// NeverReported reports whether no traffic report arrived since match; such
// sessions are swept after the grace period with zero settlement.
func (s *Session) NeverReported() bool {
	return s.lastReportAt == nil
}
