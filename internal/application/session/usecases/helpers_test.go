package usecases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/authorization"
)

// testSettlementPolicy mirrors configs/policy.yaml: 1 MiB per credit, half
// share for operators, 1.2x bonus at reputation 80+. Tiers are pre-sorted
// highest threshold first, as LoadPolicy would leave them.
func testSettlementPolicy() *ledger.SettlementPolicy {
	return &ledger.SettlementPolicy{
		BytesPerCredit:  1 << 20,
		ShareMultiplier: 0.5,
		TrafficClasses: map[string]float64{
			"STANDARD":  1.0,
			"STREAMING": 1.5,
			"TORRENT":   2.0,
		},
		ReputationBonus: []ledger.ReputationTier{
			{MinReputation: 80, Multiplier: 1.2},
			{MinReputation: 0, Multiplier: 1.0},
		},
	}
}

func newTestRelay(t *testing.T, nodeID uint, owner *uint, protocols node.ProtocolSet, reputation, latencyMs float64, current, max uint) *node.Node {
	t.Helper()

	group := node.GroupCommunity
	tokenHash := "tokenhash"
	if owner == nil {
		group = node.GroupPublic
		tokenHash = ""
	}
	hb := time.Now().UTC().Add(-time.Minute)

	relay, err := node.ReconstructNode(
		nodeID,
		"n_test"+string(rune('a'+nodeID%26)),
		owner,
		"relay",
		"pubhash",
		"DE",
		"Berlin",
		500,
		max,
		current,
		current,
		protocols,
		node.NewTrafficPolicy(nil, nil, true, false, 0),
		0,
		90,
		latencyMs,
		reputation,
		true,
		&hb,
		group,
		tokenHash,
		false,
		1,
		hb, hb,
	)
	require.NoError(t, err)
	return relay
}

func newOpenSession(t *testing.T, sessionID, nodeID uint, owner *uint, userID uint, bytes uint64, status session.Status) *session.Session {
	t.Helper()

	started := time.Now().UTC().Add(-10 * time.Minute)
	var lastReport *time.Time
	if status == session.StatusActive {
		reported := started.Add(5 * time.Minute)
		lastReport = &reported
	}

	sess, err := session.ReconstructSession(
		sessionID,
		"s_test123",
		nodeID,
		owner,
		userID,
		"DE",
		"",
		session.TrafficStandard,
		"WIREGUARD",
		"10.8.0.17",
		"pubhash.relay.worldvpn.net:51820",
		bytes,
		0,
		0,
		status,
		nil,
		false,
		started,
		lastReport,
		nil,
		1,
		started, started,
	)
	require.NoError(t, err)
	return sess
}

func newTestAccount(t *testing.T, userID uint) *user.User {
	t.Helper()

	now := time.Now().UTC()
	account, err := user.ReconstructUser(
		userID, "u_client01", "client", "hashed:pw",
		authorization.RoleUser, 100, 0, 1, now, now,
	)
	require.NoError(t, err)
	return account
}

func uintPtr(v uint) *uint { return &v }
