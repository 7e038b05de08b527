package usecases

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/infrastructure/auth"
	"github.com/worldvpn/broker/internal/shared/authorization"
)

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

// stubHasher hashes by prefixing; good enough to verify round trips in tests.
type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (stubHasher) Verify(password, hash string) error {
	if hash != "hashed:"+password {
		return fmt.Errorf("password verification failed")
	}
	return nil
}

type stubTokenIssuer struct {
	refreshErr error
}

func (s *stubTokenIssuer) Generate(userSID string, role authorization.UserRole) (*auth.TokenPair, error) {
	return &auth.TokenPair{
		AccessToken:  "access-" + userSID,
		RefreshToken: "refresh-" + userSID,
		ExpiresIn:    900,
	}, nil
}

func (s *stubTokenIssuer) Refresh(refreshTokenString string) (*auth.TokenPair, error) {
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return &auth.TokenPair{
		AccessToken:  "access-rotated",
		RefreshToken: "refresh-rotated",
		ExpiresIn:    900,
	}, nil
}

// passthroughTxManager runs the function directly, without a database.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
