package usecases

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/domain/user"
)

type mockNodeRepository struct {
	mock.Mock
}

func (m *mockNodeRepository) Create(ctx context.Context, n *node.Node) error {
	args := m.Called(ctx, n)
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

func (m *mockNodeRepository) Update(ctx context.Context, n *node.Node) error {
	args := m.Called(ctx, n)
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

func (m *mockUserRepository) Create(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
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

func (m *mockUserRepository) Update(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

// stubSessionCloser records close calls without a session store.
type stubSessionCloser struct {
	closed map[uint]session.CloseReason
	count  int
	err    error
}

func newStubSessionCloser() *stubSessionCloser {
	return &stubSessionCloser{closed: make(map[uint]session.CloseReason)}
}

func (s *stubSessionCloser) CloseSessionsForNode(ctx context.Context, nodeID uint, reason session.CloseReason) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.closed[nodeID] = reason
	return s.count, nil
}
