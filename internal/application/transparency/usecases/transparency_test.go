package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func testRelay(t *testing.T, nodeID uint, country string) *node.Node {
	t.Helper()

	owner := uint(9)
	hb := time.Now().UTC().Add(-time.Minute)
	relay, err := node.ReconstructNode(
		nodeID, "n_public01", &owner, "relay", "pubhash", country, "",
		500, 20, 3, 3,
		node.ProtocolSet{node.ProtocolWireGuard},
		node.NewTrafficPolicy(nil, nil, true, false, 0),
		0, 90, 20, 80, true, &hb,
		node.GroupCommunity, "tokenhash", false, 1, hb, hb,
	)
	require.NoError(t, err)
	return relay
}

func activeSession(t *testing.T, sessionID, nodeID uint) *session.Session {
	t.Helper()

	owner := uint(9)
	started := time.Now().UTC().Add(-time.Hour)
	reported := started.Add(30 * time.Minute)
	sess, err := session.ReconstructSession(
		sessionID, "s_active01", nodeID, &owner, 3,
		"IR", "", session.TrafficStandard, "WIREGUARD",
		"10.8.0.17", "pubhash.relay.worldvpn.net:51820",
		7<<20, 7, 3,
		session.StatusActive, nil, false,
		started, &reported, nil, 2, started, started,
	)
	require.NoError(t, err)
	return sess
}

func TestGetNetworkStats(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	sessionRepo := new(mockSessionRepository)
	ledgerRepo := new(mockLedgerRepository)
	uc := NewGetNetworkStatsUseCase(nodeRepo, sessionRepo, ledgerRepo, logger.NewLogger())

	nodeRepo.On("CountByGroup", mock.Anything).Return([]node.GroupCount{
		{Group: node.GroupCommunity, Total: 12, Online: 8},
		{Group: node.GroupPublic, Total: 40, Online: 31},
	}, nil)
	sessionRepo.On("Stats", mock.Anything).Return(&session.NetworkStats{
		ActiveSessions:  17,
		BytesRelayed24h: 3 << 30,
		SessionsClosed:  900,
	}, nil)
	ledgerRepo.On("CreditsInCirculation", mock.Anything).Return(int64(12_345), nil)

	result, err := uc.Execute(context.Background())

	require.NoError(t, err)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, "COMMUNITY", result.Nodes[0].Group)
	assert.Equal(t, int64(8), result.Nodes[0].Online)
	assert.Equal(t, int64(17), result.ActiveSessions)
	assert.Equal(t, uint64(3<<30), result.BytesRelayed24h)
	assert.Equal(t, int64(12_345), result.CreditsInCirculation)
}

func TestListPublicSessions_ActiveIsAnonymized(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	sessionRepo := new(mockSessionRepository)
	uc := NewListPublicSessionsUseCase(sessionRepo, nodeRepo, logger.NewLogger())

	sess := activeSession(t, 1, 5)
	sessionRepo.On("ListActive", mock.Anything, constants.TransparencyMaxRows).
		Return([]*session.Session{sess}, nil)
	nodeRepo.On("GetByID", mock.Anything, uint(5)).Return(testRelay(t, 5, "DE"), nil)

	result, err := uc.Active(context.Background())

	require.NoError(t, err)
	require.Len(t, result.Sessions, 1)
	view := result.Sessions[0]
	assert.Equal(t, "n_public01", view.NodeSID)
	assert.Equal(t, "DE", view.NodeCountry)
	assert.Equal(t, "Germany", view.NodeCountryName)
	assert.Equal(t, "IR", view.ClientCountry)
	assert.Equal(t, uint64(7<<20), view.Bytes)
}

func TestListPublicSessions_HistoryClampsDays(t *testing.T) {
	nodeRepo := new(mockNodeRepository)
	sessionRepo := new(mockSessionRepository)
	uc := NewListPublicSessionsUseCase(sessionRepo, nodeRepo, logger.NewLogger())

	var gotSince time.Time
	sessionRepo.On("ListClosedSince", mock.Anything, mock.Anything, constants.TransparencyMaxRows).
		Run(func(args mock.Arguments) {
			gotSince = args.Get(1).(time.Time)
		}).Return([]*session.Session{}, nil)

	_, err := uc.History(context.Background(), 365)

	require.NoError(t, err)
	expected := time.Now().UTC().AddDate(0, 0, -constants.TransparencyMaxDays)
	assert.WithinDuration(t, expected, gotSince, time.Minute)
}
