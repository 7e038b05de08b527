package usecases

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
)

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

// stubMailer captures ledger alerts.
type stubMailer struct {
	alerts [][]ledger.Discrepancy
	err    error
}

func (s *stubMailer) SendLedgerAlert(discrepancies []ledger.Discrepancy) error {
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, discrepancies)
	return nil
}
