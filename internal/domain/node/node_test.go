package node

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	protocols, err := ParseProtocolSet([]string{"WIREGUARD", "SHADOWSOCKS"})
	require.NoError(t, err)

	n, err := NewCommunityNode(
		7,
		"paris-relay",
		HashIdentity("wg-pubkey-1"),
		"FR",
		"Paris",
		500,
		10,
		protocols,
		NewTrafficPolicy(nil, []string{"KP"}, true, false, 0),
	)
	require.NoError(t, err)
	return n
}

func TestNewCommunityNode(t *testing.T) {
	n := newTestNode(t)

	assert.Equal(t, GroupCommunity, n.GroupTag())
	assert.Equal(t, uint(7), *n.OwnerID())
	assert.False(t, n.Online(), "community nodes come up offline until the first heartbeat")
	assert.InDelta(t, InitialReputation, n.Reputation(), 1e-9)
	assert.True(t, strings.HasPrefix(n.APIToken(), "node_"))
	assert.True(t, n.VerifyAPIToken(n.APIToken()))
	assert.False(t, n.VerifyAPIToken("node_forged"))
}

func TestNewCommunityNodeValidation(t *testing.T) {
	protocols, _ := ParseProtocolSet([]string{"WIREGUARD"})
	policy := NewTrafficPolicy(nil, nil, true, false, 0)

	_, err := NewCommunityNode(0, "x", "h", "FR", "", 1, 1, protocols, policy)
	assert.Error(t, err, "owner is required")

	_, err = NewCommunityNode(1, "", "h", "FR", "", 1, 1, protocols, policy)
	assert.Error(t, err, "name is required")

	_, err = NewCommunityNode(1, "x", "h", "FRA", "", 1, 1, protocols, policy)
	assert.Error(t, err, "country must be alpha-2")

	_, err = NewCommunityNode(1, "x", "h", "FR", "", 1, 0, protocols, policy)
	assert.Error(t, err, "capacity must be positive")

	_, err = NewCommunityNode(1, "x", "h", "FR", "", 1, 1, nil, policy)
	assert.Error(t, err, "protocols are required")
}

func TestNewPublicNode(t *testing.T) {
	protocols, _ := ParseProtocolSet([]string{"OPENVPN_TCP", "OPENVPN_UDP"})
	n, err := NewPublicNode("gate-jp-1", HashIdentity("feed-key"), "JP", "Tokyo", 100, 50, protocols, 72)
	require.NoError(t, err)

	assert.Equal(t, GroupPublic, n.GroupTag())
	assert.Nil(t, n.OwnerID())
	assert.True(t, n.Online(), "public gateways are online at import time")
	assert.NotNil(t, n.LastHeartbeatAt())
	assert.Empty(t, n.APITokenHash(), "public gateways carry no agent token")
	assert.False(t, n.VerifyAPIToken("anything"))
}

func TestHeartbeatRecovery(t *testing.T) {
	n := newTestNode(t)
	now := time.Now().UTC()

	latency := 42.0
	recovered := n.Heartbeat(3, 99, &latency, nil, 0.02, now)
	assert.True(t, recovered, "first heartbeat transitions offline -> online")
	assert.True(t, n.Online())
	assert.Equal(t, uint(3), n.ReportedConnections())
	assert.Equal(t, now, n.LastHeartbeatAt().UTC())
	assert.InDelta(t, 42.0, n.AvgLatencyMs(), 1e-9, "first latency sample seeds the EMA")

	before := n.Reputation()
	recovered = n.Heartbeat(3, 99, &latency, nil, 0.02, now.Add(30*time.Second))
	assert.False(t, recovered)
	assert.Greater(t, n.Reputation(), before, "sustained beats recover reputation")
	assert.Less(t, n.Reputation(), MaxReputation, "recovery is smoothed, never a snap to 100")
}

func TestMarkOfflineDecaysSmoothly(t *testing.T) {
	n := newTestNode(t)
	n.Heartbeat(0, 100, nil, nil, 0.02, time.Now().UTC())

	before := n.Reputation()
	n.MarkOffline(0.10)

	assert.False(t, n.Online())
	assert.InDelta(t, before*0.9, n.Reputation(), 1e-9, "one miss decays 10%, not a reset")

	// Repeated decay converges toward zero without going negative.
	for i := 0; i < 200; i++ {
		n.DecayReputation(0.10)
	}
	assert.GreaterOrEqual(t, n.Reputation(), 0.0)
}

func TestReputationWhiplashResistance(t *testing.T) {
	n := newTestNode(t)
	now := time.Now().UTC()
	n.Heartbeat(0, 100, nil, nil, 0.02, now)

	afterBeat := n.Reputation()
	n.MarkOffline(0.10)
	dropped := n.Reputation()
	require.Less(t, dropped, afterBeat)

	// One beat after the miss recovers only a fraction of the loss.
	n.Heartbeat(0, 100, nil, nil, 0.02, now.Add(time.Minute))
	assert.Less(t, n.Reputation(), afterBeat)
	assert.Greater(t, n.Reputation(), dropped)
}

func TestCapacityHelpers(t *testing.T) {
	protocols, _ := ParseProtocolSet([]string{"WIREGUARD"})
	n, err := ReconstructNode(
		1, "n_abc", nil, "full", "h", "DE", "", 100,
		4, 4, 0,
		protocols, NewTrafficPolicy(nil, nil, true, false, 0),
		0, 90, 10, 80, true, nil, GroupPublic, "", false, 1,
		time.Now(), time.Now(),
	)
	require.NoError(t, err)

	assert.False(t, n.HasFreeCapacity())
	assert.InDelta(t, 0.0, n.SpareCapacityRatio(), 1e-9)

	_, err = ReconstructNode(
		2, "n_def", nil, "overfull", "h", "DE", "", 100,
		4, 5, 0,
		protocols, NewTrafficPolicy(nil, nil, true, false, 0),
		0, 90, 10, 80, true, nil, GroupPublic, "", false, 1,
		time.Now(), time.Now(),
	)
	assert.Error(t, err, "current above max must be rejected at reconstruction")
}

func TestQuotaExhausted(t *testing.T) {
	n := newTestNode(t)
	assert.False(t, n.QuotaExhausted(), "zero cap means unlimited")

	protocols, _ := ParseProtocolSet([]string{"WIREGUARD"})
	capped, err := ReconstructNode(
		3, "n_ghi", nil, "capped", "h", "DE", "", 100,
		4, 0, 0,
		protocols, NewTrafficPolicy(nil, nil, true, false, 1000),
		1000, 90, 10, 80, true, nil, GroupPublic, "", false, 1,
		time.Now(), time.Now(),
	)
	require.NoError(t, err)
	assert.True(t, capped.QuotaExhausted())
}

func TestIsStale(t *testing.T) {
	n := newTestNode(t)
	now := time.Now().UTC()

	assert.True(t, n.IsStale(90*time.Second, now), "no heartbeat yet is stale")

	n.Heartbeat(0, 100, nil, nil, 0.02, now.Add(-2*time.Minute))
	assert.True(t, n.IsStale(90*time.Second, now))

	n.Heartbeat(0, 100, nil, nil, 0.02, now.Add(-30*time.Second))
	assert.False(t, n.IsStale(90*time.Second, now))
}

func TestEndpoint(t *testing.T) {
	n := newTestNode(t)
	endpoint := n.Endpoint(ProtocolWireGuard)
	assert.Contains(t, endpoint, ":51820")
	assert.NotContains(t, endpoint, "wg-pubkey-1", "raw identity must never appear")
}
