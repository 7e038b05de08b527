package usecases

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/domain/user"
)

// Shared test doubles for the session use cases.

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Create(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *mockSessionRepository) GetByID(ctx context.Context, id uint) (*session.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *mockSessionRepository) GetBySID(ctx context.Context, sid string) (*session.Session, error) {
	args := m.Called(ctx, sid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *mockSessionRepository) Update(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *mockSessionRepository) ListActiveByNode(ctx context.Context, nodeID uint) ([]*session.Session, error) {
	args := m.Called(ctx, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*session.Session), args.Error(1)
}

func (m *mockSessionRepository) ListActiveByUser(ctx context.Context, userID uint) ([]*session.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*session.Session), args.Error(1)
}

func (m *mockSessionRepository) ListActive(ctx context.Context, limit int) ([]*session.Session, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*session.Session), args.Error(1)
}

func (m *mockSessionRepository) ListClosedSince(ctx context.Context, since time.Time, limit int) ([]*session.Session, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*session.Session), args.Error(1)
}

func (m *mockSessionRepository) BeginClose(ctx context.Context, sessionID uint, reason session.CloseReason) (bool, error) {
	args := m.Called(ctx, sessionID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepository) ListMatchedBefore(ctx context.Context, cutoff time.Time) ([]*session.Session, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*session.Session), args.Error(1)
}

func (m *mockSessionRepository) ListActiveAssignedIPs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockSessionRepository) CountActive(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepository) Stats(ctx context.Context) (*session.NetworkStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.NetworkStats), args.Error(1)
}

type mockNodeRepository struct {
	mock.Mock
}

func (m *mockNodeRepository) Create(ctx context.Context, relay *node.Node) error {
	args := m.Called(ctx, relay)
	return args.Error(0)
}

func (m *mockNodeRepository) GetByID(ctx context.Context, id uint) (*node.Node, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*node.Node), args.Error(1)
}

func (m *mockNodeRepository) GetBySID(ctx context.Context, sid string) (*node.Node, error) {
	args := m.Called(ctx, sid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*node.Node), args.Error(1)
}

func (m *mockNodeRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*node.Node, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*node.Node), args.Error(1)
}

func (m *mockNodeRepository) GetByIdentityHash(ctx context.Context, identityHash string) (*node.Node, error) {
	args := m.Called(ctx, identityHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*node.Node), args.Error(1)
}

func (m *mockNodeRepository) Update(ctx context.Context, relay *node.Node) error {
	args := m.Called(ctx, relay)
	return args.Error(0)
}

func (m *mockNodeRepository) ListByOwner(ctx context.Context, ownerID uint) ([]*node.Node, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*node.Node), args.Error(1)
}

func (m *mockNodeRepository) ListEligible(ctx context.Context, filter node.EligibilityFilter) ([]*node.Node, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*node.Node), args.Error(1)
}

func (m *mockNodeRepository) ReserveSlot(ctx context.Context, nodeID uint) (bool, error) {
	args := m.Called(ctx, nodeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockNodeRepository) ReleaseSlot(ctx context.Context, nodeID uint) error {
	args := m.Called(ctx, nodeID)
	return args.Error(0)
}

func (m *mockNodeRepository) ListStaleOnline(ctx context.Context, group node.Group, cutoff time.Time) ([]*node.Node, error) {
	args := m.Called(ctx, group, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*node.Node), args.Error(1)
}

func (m *mockNodeRepository) ListOfflineSince(ctx context.Context, horizon time.Time) ([]*node.Node, error) {
	args := m.Called(ctx, horizon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*node.Node), args.Error(1)
}

func (m *mockNodeRepository) AddDailyTraffic(ctx context.Context, nodeID uint, bytes uint64) error {
	args := m.Called(ctx, nodeID, bytes)
	return args.Error(0)
}

func (m *mockNodeRepository) ResetDailyTraffic(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNodeRepository) CountByGroup(ctx context.Context) ([]node.GroupCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]node.GroupCount), args.Error(1)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, account *user.User) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uint) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *mockUserRepository) GetBySID(ctx context.Context, sid string) (*user.User, error) {
	args := m.Called(ctx, sid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, account *user.User) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

type mockLedgerRepository struct {
	mock.Mock
}

func (m *mockLedgerRepository) Record(ctx context.Context, tx *ledger.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockLedgerRepository) Balance(ctx context.Context, userID uint) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedgerRepository) History(ctx context.Context, userID uint, limit int) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

func (m *mockLedgerRepository) SumByUser(ctx context.Context, userID uint) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedgerRepository) VerifyBalances(ctx context.Context) ([]ledger.Discrepancy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Discrepancy), args.Error(1)
}

func (m *mockLedgerRepository) CreditsInCirculation(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedgerRepository) ExistsForSession(ctx context.Context, sessionID uint, txType ledger.TransactionType) (bool, error) {
	args := m.Called(ctx, sessionID, txType)
	return args.Bool(0), args.Error(1)
}

// stubAbuseGuard is an always-allow guard unless an error is injected.
type stubAbuseGuard struct {
	connectErr error
	trafficErr error
}

func (s *stubAbuseGuard) CheckConnect(ctx context.Context, userID uint) error {
	return s.connectErr
}

func (s *stubAbuseGuard) CheckTraffic(ctx context.Context, userID uint, deltaBytes int64) error {
	return s.trafficErr
}

// stubAccumulator records accumulated bytes per node.
type stubAccumulator struct {
	bytes map[uint]uint64
	err   error
}

func newStubAccumulator() *stubAccumulator {
	return &stubAccumulator{bytes: make(map[uint]uint64)}
}

func (s *stubAccumulator) Accumulate(ctx context.Context, nodeID uint, bytes uint64) error {
	if s.err != nil {
		return s.err
	}
	s.bytes[nodeID] += bytes
	return nil
}

// passthroughTxManager runs the function without a real transaction.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
