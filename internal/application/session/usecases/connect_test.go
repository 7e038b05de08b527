package usecases

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/shared/config"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type connectFixture struct {
	userRepo    *mockUserRepository
	nodeRepo    *mockNodeRepository
	sessionRepo *mockSessionRepository
	ledgerRepo  *mockLedgerRepository
	guard       *stubAbuseGuard
	uc          *ConnectUseCase
}

func newConnectFixture(t *testing.T) *connectFixture {
	t.Helper()

	f := &connectFixture{
		userRepo:    new(mockUserRepository),
		nodeRepo:    new(mockNodeRepository),
		sessionRepo: new(mockSessionRepository),
		ledgerRepo:  new(mockLedgerRepository),
		guard:       &stubAbuseGuard{},
	}

	allocator, err := NewVirtualIPAllocator("10.8.0.0/24")
	require.NoError(t, err)

	log := logger.NewLogger()
	f.uc = NewConnectUseCase(
		f.userRepo, f.nodeRepo, f.sessionRepo, f.ledgerRepo,
		NewMatcher(f.nodeRepo, config.MatchConfig{}, log),
		allocator, f.guard, 1, log,
	)
	return f
}

func connectCommand() ConnectCommand {
	return ConnectCommand{
		UserSID:       "u_client01",
		ClientCountry: "DE",
		Protocol:      "WIREGUARD",
		TrafficClass:  "STANDARD",
	}
}

func TestConnectUseCase_BrokersSession(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)
	relay := newTestRelay(t, 5, uintPtr(9), node.ProtocolSet{node.ProtocolWireGuard}, 90, 20, 3, 20)

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	f.ledgerRepo.On("Balance", mock.Anything, uint(3)).Return(int64(50), nil)
	f.nodeRepo.On("ListEligible", mock.Anything, mock.Anything).Return([]*node.Node{relay}, nil)
	f.nodeRepo.On("ReserveSlot", mock.Anything, uint(5)).Return(true, nil)
	f.sessionRepo.On("ListActiveAssignedIPs", mock.Anything).Return([]string{}, nil)

	var created *session.Session
	f.sessionRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*session.Session)
	}).Return(nil)

	result, err := f.uc.Execute(context.Background(), connectCommand())

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, session.StatusMatched, created.Status())
	assert.Equal(t, uint(5), created.NodeID())
	assert.Equal(t, created.SID(), result.SessionSID)
	assert.Equal(t, relay.SID(), result.NodeSID)
	assert.Equal(t, "DE", result.NodeCountry)

	addr, err := netip.ParseAddr(result.AssignedIP)
	require.NoError(t, err)
	assert.True(t, netip.MustParsePrefix("10.8.0.0/24").Contains(addr))
	assert.NotEmpty(t, result.ServerEndpoint)
}

func TestConnectUseCase_RejectsLowBalance(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	f.ledgerRepo.On("Balance", mock.Anything, uint(3)).Return(int64(0), nil)

	_, err := f.uc.Execute(context.Background(), connectCommand())

	assert.True(t, errors.IsInsufficientCreditsError(err))
	f.nodeRepo.AssertNotCalled(t, "ListEligible", mock.Anything, mock.Anything)
}

func TestConnectUseCase_AbuseGuardBlocks(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)
	f.guard.connectErr = errors.NewForbiddenError("connect rate exceeded")

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)

	_, err := f.uc.Execute(context.Background(), connectCommand())

	assert.Error(t, err)
	f.ledgerRepo.AssertNotCalled(t, "Balance", mock.Anything, mock.Anything)
}

func TestConnectUseCase_NoEligibleNode(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	f.ledgerRepo.On("Balance", mock.Anything, uint(3)).Return(int64(50), nil)
	f.nodeRepo.On("ListEligible", mock.Anything, mock.Anything).Return([]*node.Node{}, nil)

	_, err := f.uc.Execute(context.Background(), connectCommand())

	assert.True(t, errors.IsNoEligibleNodeError(err))
}

func TestConnectUseCase_FiltersNodesByTrafficClass(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)
	// Test relays forbid torrents, so a TORRENT request finds nothing.
	relay := newTestRelay(t, 5, uintPtr(9), node.ProtocolSet{node.ProtocolWireGuard}, 90, 20, 3, 20)

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	f.ledgerRepo.On("Balance", mock.Anything, uint(3)).Return(int64(50), nil)
	f.nodeRepo.On("ListEligible", mock.Anything, mock.Anything).Return([]*node.Node{relay}, nil)

	cmd := connectCommand()
	cmd.TrafficClass = "TORRENT"
	_, err := f.uc.Execute(context.Background(), cmd)

	assert.True(t, errors.IsNoEligibleNodeError(err))
	f.nodeRepo.AssertNotCalled(t, "ReserveSlot", mock.Anything, mock.Anything)
}

func TestConnectUseCase_ReleasesSlotWhenCreateFails(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)
	relay := newTestRelay(t, 5, uintPtr(9), node.ProtocolSet{node.ProtocolWireGuard}, 90, 20, 3, 20)

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	f.ledgerRepo.On("Balance", mock.Anything, uint(3)).Return(int64(50), nil)
	f.nodeRepo.On("ListEligible", mock.Anything, mock.Anything).Return([]*node.Node{relay}, nil)
	f.nodeRepo.On("ReserveSlot", mock.Anything, uint(5)).Return(true, nil)
	f.sessionRepo.On("ListActiveAssignedIPs", mock.Anything).Return([]string{}, nil)
	f.sessionRepo.On("Create", mock.Anything, mock.Anything).Return(errors.NewInternalError("insert failed"))
	f.nodeRepo.On("ReleaseSlot", mock.Anything, uint(5)).Return(nil)

	_, err := f.uc.Execute(context.Background(), connectCommand())

	assert.Error(t, err)
	f.nodeRepo.AssertCalled(t, "ReleaseSlot", mock.Anything, uint(5))
}

func TestConnectUseCase_ReallocatesIPOnCollision(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)
	relay := newTestRelay(t, 5, uintPtr(9), node.ProtocolSet{node.ProtocolWireGuard}, 90, 20, 3, 20)

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	f.ledgerRepo.On("Balance", mock.Anything, uint(3)).Return(int64(50), nil)
	f.nodeRepo.On("ListEligible", mock.Anything, mock.Anything).Return([]*node.Node{relay}, nil)
	f.nodeRepo.On("ReserveSlot", mock.Anything, uint(5)).Return(true, nil)
	f.sessionRepo.On("ListActiveAssignedIPs", mock.Anything).Return([]string{}, nil)

	// A concurrent connect stole the first address; the insert bounces off
	// the unique index and the second draw succeeds.
	f.sessionRepo.On("Create", mock.Anything, mock.Anything).
		Return(errors.NewConflictError("assigned virtual IP already in use")).Once()
	f.sessionRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := f.uc.Execute(context.Background(), connectCommand())

	require.NoError(t, err)
	assert.NotEmpty(t, result.AssignedIP)
	f.sessionRepo.AssertNumberOfCalls(t, "Create", 2)
	f.nodeRepo.AssertNotCalled(t, "ReleaseSlot", mock.Anything, mock.Anything)
}

func TestConnectUseCase_GivesUpAfterRepeatedIPCollisions(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)
	relay := newTestRelay(t, 5, uintPtr(9), node.ProtocolSet{node.ProtocolWireGuard}, 90, 20, 3, 20)

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	f.ledgerRepo.On("Balance", mock.Anything, uint(3)).Return(int64(50), nil)
	f.nodeRepo.On("ListEligible", mock.Anything, mock.Anything).Return([]*node.Node{relay}, nil)
	f.nodeRepo.On("ReserveSlot", mock.Anything, uint(5)).Return(true, nil)
	f.sessionRepo.On("ListActiveAssignedIPs", mock.Anything).Return([]string{}, nil)
	f.sessionRepo.On("Create", mock.Anything, mock.Anything).
		Return(errors.NewConflictError("assigned virtual IP already in use"))
	f.nodeRepo.On("ReleaseSlot", mock.Anything, uint(5)).Return(nil)

	_, err := f.uc.Execute(context.Background(), connectCommand())

	assert.True(t, errors.IsConflictError(err))
	f.sessionRepo.AssertNumberOfCalls(t, "Create", ipAssignAttempts)
	// the reserved slot goes back when the connect fails
	f.nodeRepo.AssertCalled(t, "ReleaseSlot", mock.Anything, uint(5))
}

func TestConnectUseCase_ValidatesRequest(t *testing.T) {
	f := newConnectFixture(t)
	account := newTestAccount(t, 3)

	f.userRepo.On("GetBySID", mock.Anything, "u_client01").Return(account, nil)
	f.ledgerRepo.On("Balance", mock.Anything, uint(3)).Return(int64(50), nil)

	tests := []struct {
		name   string
		mutate func(*ConnectCommand)
	}{
		{"unknown protocol", func(c *ConnectCommand) { c.Protocol = "SMTP" }},
		{"bad traffic class", func(c *ConnectCommand) { c.TrafficClass = "BULK" }},
		{"bad client country", func(c *ConnectCommand) { c.ClientCountry = "ZZ" }},
		{"bad node country", func(c *ConnectCommand) { bad := "ZZZ"; c.NodeCountry = &bad }},
		{"bad group", func(c *ConnectCommand) { bad := "PREMIUM"; c.Group = &bad }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := connectCommand()
			tt.mutate(&cmd)

			_, err := f.uc.Execute(context.Background(), cmd)

			assert.True(t, errors.IsValidationError(err), "expected validation error, got %v", err)
		})
	}
}
