package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatchedSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(3, "FR", "client-hash", TrafficStandard, "WIREGUARD")
	require.NoError(t, err)

	owner := uint(9)
	require.NoError(t, s.Match(5, &owner, "10.8.0.2", "abc.relay.worldvpn.net:51820"))
	return s
}

func TestNewSession(t *testing.T) {
	s, err := NewSession(3, "FR", "hash", TrafficStreaming, "SHADOWSOCKS")
	require.NoError(t, err)

	assert.Equal(t, StatusRequested, s.Status())
	assert.True(t, s.Active())
	assert.False(t, s.Settled())
	assert.NotEmpty(t, s.SID())
	assert.True(t, s.NeverReported())
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(0, "FR", "h", TrafficStandard, "WIREGUARD")
	assert.Error(t, err)

	_, err = NewSession(1, "FR", "h", TrafficClass("BULK"), "WIREGUARD")
	assert.Error(t, err)

	_, err = NewSession(1, "FR", "h", TrafficStandard, "")
	assert.Error(t, err)
}

func TestMatchTransition(t *testing.T) {
	s := newMatchedSession(t)
	assert.Equal(t, StatusMatched, s.Status())
	assert.Equal(t, uint(5), s.NodeID())
	assert.Equal(t, "10.8.0.2", s.AssignedIP())

	// Matching twice is an illegal transition.
	owner := uint(9)
	assert.Error(t, s.Match(6, &owner, "10.8.0.3", "other:51820"))
}

func TestReportTrafficMonotonic(t *testing.T) {
	s := newMatchedSession(t)
	now := time.Now().UTC()

	require.NoError(t, s.ReportTraffic(1000, now))
	assert.Equal(t, StatusActive, s.Status(), "first report activates the session")
	assert.Equal(t, uint64(1000), s.BytesTransferred())
	assert.False(t, s.NeverReported())

	require.NoError(t, s.ReportTraffic(1000, now), "equal counter is not a regression")

	err := s.ReportTraffic(999, now)
	assert.Error(t, err, "regressions must be rejected")
	assert.Equal(t, uint64(1000), s.BytesTransferred(), "state unchanged after rejection")
}

func TestReportTrafficOnRequestedSession(t *testing.T) {
	s, err := NewSession(3, "FR", "h", TrafficStandard, "WIREGUARD")
	require.NoError(t, err)
	assert.Error(t, s.ReportTraffic(10, time.Now()), "unmatched sessions accept no traffic")
}

func TestCloseLifecycle(t *testing.T) {
	s := newMatchedSession(t)
	require.NoError(t, s.ReportTraffic(5000, time.Now()))

	require.NoError(t, s.BeginClose(CloseClientDisconnect))
	assert.Equal(t, StatusClosing, s.Status())
	assert.False(t, s.Active())
	require.NotNil(t, s.CloseReason())
	assert.Equal(t, CloseClientDisconnect, *s.CloseReason())

	assert.Error(t, s.BeginClose(CloseNodeOffline), "second close is rejected")

	now := time.Now().UTC()
	require.NoError(t, s.CompleteClose(5, 6, now))
	assert.Equal(t, StatusClosed, s.Status())
	assert.True(t, s.Settled())
	assert.Equal(t, int64(5), s.CreditsSpent())
	assert.Equal(t, int64(6), s.CreditsEarned())
	require.NotNil(t, s.EndedAt())

	assert.Error(t, s.CompleteClose(5, 6, now), "closed sessions are immutable")
	assert.Error(t, s.ReportTraffic(9000, now))
}

func TestBeginCloseFromEveryOpenState(t *testing.T) {
	// REQUESTED can close (failed match cleanup).
	s, err := NewSession(3, "FR", "h", TrafficStandard, "WIREGUARD")
	require.NoError(t, err)
	assert.NoError(t, s.BeginClose(CloseGraceTimeout))

	// MATCHED can close (grace timeout before first report).
	s = newMatchedSession(t)
	assert.NoError(t, s.BeginClose(CloseGraceTimeout))

	// ACTIVE can close.
	s = newMatchedSession(t)
	require.NoError(t, s.ReportTraffic(1, time.Now()))
	assert.NoError(t, s.BeginClose(CloseNodeOffline))
}

func TestStatusTransitionTable(t *testing.T) {
	assert.True(t, StatusRequested.CanTransitionTo(StatusMatched))
	assert.False(t, StatusRequested.CanTransitionTo(StatusActive))
	assert.True(t, StatusMatched.CanTransitionTo(StatusActive))
	assert.False(t, StatusMatched.CanTransitionTo(StatusClosed))
	assert.True(t, StatusActive.CanTransitionTo(StatusClosing))
	assert.True(t, StatusClosing.CanTransitionTo(StatusClosed))
	assert.False(t, StatusClosed.CanTransitionTo(StatusClosing))
}

func TestParseTrafficClass(t *testing.T) {
	c, err := ParseTrafficClass("")
	require.NoError(t, err)
	assert.Equal(t, TrafficStandard, c, "empty defaults to STANDARD")

	c, err = ParseTrafficClass("streaming")
	require.NoError(t, err)
	assert.Equal(t, TrafficStreaming, c)

	_, err = ParseTrafficClass("gaming")
	assert.Error(t, err)
}
