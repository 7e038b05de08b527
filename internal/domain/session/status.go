package session

import (
	"fmt"
	"strings"
)

// Status is the session lifecycle state. Transitions follow a strict
// machine: REQUESTED -> MATCHED -> ACTIVE -> CLOSING -> CLOSED, with CLOSING
// reachable from any pre-closed state so forced teardown is always possible.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusMatched   Status = "MATCHED"
	StatusActive    Status = "ACTIVE"
	StatusClosing   Status = "CLOSING"
	StatusClosed    Status = "CLOSED"
)

// IsValid reports whether the status is part of the closed vocabulary.
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusMatched, StatusActive, StatusClosing, StatusClosed:
		return true
	}
	return false
}

// String returns the status tag.
func (s Status) String() string { return string(s) }

// CanTransitionTo reports whether the move is legal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusRequested:
		return next == StatusMatched || next == StatusClosing
	case StatusMatched:
		return next == StatusActive || next == StatusClosing
	case StatusActive:
		return next == StatusClosing
	case StatusClosing:
		return next == StatusClosed
	case StatusClosed:
		return false
	}
	return false
}

// IsOpen reports whether the session still occupies a capacity slot.
func (s Status) IsOpen() bool {
	return s == StatusRequested || s == StatusMatched || s == StatusActive
}

// CloseReason records why a session ended.
type CloseReason string

const (
	CloseClientDisconnect    CloseReason = "CLIENT_DISCONNECT"
	CloseNodeOffline         CloseReason = "NODE_OFFLINE"
	CloseQuotaExceeded       CloseReason = "QUOTA_EXCEEDED"
	CloseInsufficientCredits CloseReason = "INSUFFICIENT_CREDITS"
	CloseGraceTimeout        CloseReason = "GRACE_TIMEOUT"
	CloseAbuse               CloseReason = "ABUSE"
	CloseOperator            CloseReason = "OPERATOR"
)

// IsValid reports whether the reason is part of the closed vocabulary.
func (r CloseReason) IsValid() bool {
	switch r {
	case CloseClientDisconnect, CloseNodeOffline, CloseQuotaExceeded,
		CloseInsufficientCredits, CloseGraceTimeout, CloseAbuse, CloseOperator:
		return true
	}
	return false
}

// String returns the reason tag.
func (r CloseReason) String() string { return string(r) }

// TrafficClass tags the session's declared traffic profile; it selects the
// settlement multiplier and is checked against node policy.
type TrafficClass string

const (
	TrafficStandard  TrafficClass = "STANDARD"
	TrafficStreaming TrafficClass = "STREAMING"
	TrafficTorrent   TrafficClass = "TORRENT"
)

// ParseTrafficClass validates a class tag at the boundary. Empty defaults to
// STANDARD.
func ParseTrafficClass(s string) (TrafficClass, error) {
	if strings.TrimSpace(s) == "" {
		return TrafficStandard, nil
	}
	c := TrafficClass(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown traffic class: %s", s)
	}
	return c, nil
}

// IsValid reports whether the class is part of the closed vocabulary.
func (c TrafficClass) IsValid() bool {
	return c == TrafficStandard || c == TrafficStreaming || c == TrafficTorrent
}

// String returns the class tag.
func (c TrafficClass) String() string { return string(c) }
