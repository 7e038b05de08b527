package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/authorization"
	"github.com/worldvpn/broker/internal/shared/config"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// fakeStore is an in-memory Store with directly settable windows.
type fakeStore struct {
	connects    int64
	bytes       uint64
	banned      bool
	banReason   string
	banDuration time.Duration
}

func (f *fakeStore) RecordBytes(ctx context.Context, userID uint, bytes uint64) error {
	f.bytes += bytes
	return nil
}

func (f *fakeStore) RecordConnect(ctx context.Context, userID uint) error {
	f.connects++
	return nil
}

func (f *fakeStore) BytesInWindow(ctx context.Context, userID uint) (uint64, error) {
	return f.bytes, nil
}

func (f *fakeStore) ConnectsInWindow(ctx context.Context, userID uint) (int64, error) {
	return f.connects, nil
}

func (f *fakeStore) Ban(ctx context.Context, userID uint, duration time.Duration, reason string) error {
	f.banned = true
	f.banReason = reason
	f.banDuration = duration
	return nil
}

func (f *fakeStore) IsBanned(ctx context.Context, userID uint) (bool, string, error) {
	return f.banned, f.banReason, nil
}

type stubAbuseMailer struct {
	alerts []string
}

func (s *stubAbuseMailer) SendAbuseAlert(userSID string, riskScore int, reason string) error {
	s.alerts = append(s.alerts, reason)
	return nil
}

// fakeLedger records appended entries; the read methods return zeros.
type fakeLedger struct {
	entries []*ledger.Transaction
}

func (f *fakeLedger) Record(ctx context.Context, tx *ledger.Transaction) error {
	f.entries = append(f.entries, tx)
	return nil
}

func (f *fakeLedger) Balance(ctx context.Context, userID uint) (int64, error) { return 0, nil }

func (f *fakeLedger) History(ctx context.Context, userID uint, limit int) ([]*ledger.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) SumByUser(ctx context.Context, userID uint) (int64, error) { return 0, nil }

func (f *fakeLedger) VerifyBalances(ctx context.Context) ([]ledger.Discrepancy, error) {
	return nil, nil
}

func (f *fakeLedger) CreditsInCirculation(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeLedger) ExistsForSession(ctx context.Context, sessionID uint, txType ledger.TransactionType) (bool, error) {
	return false, nil
}

type stubSessionCloser struct {
	closedUsers []uint
	reasons     []session.CloseReason
	closed      int
}

func (s *stubSessionCloser) CloseSessionsForUser(ctx context.Context, userID uint, reason session.CloseReason) (int, error) {
	s.closedUsers = append(s.closedUsers, userID)
	s.reasons = append(s.reasons, reason)
	return s.closed, nil
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

type guardFixture struct {
	store    *fakeStore
	userRepo *mockUserRepository
	ledger   *fakeLedger
	closer   *stubSessionCloser
	mailer   *stubAbuseMailer
	guard    *Guard
}

func newGuardFixture(cfg config.AbuseConfig) *guardFixture {
	f := &guardFixture{
		store:    &fakeStore{},
		userRepo: new(mockUserRepository),
		ledger:   &fakeLedger{},
		closer:   &stubSessionCloser{},
		mailer:   &stubAbuseMailer{},
	}
	f.guard = NewGuard(f.store, f.userRepo, f.ledger, f.closer, f.mailer, cfg, logger.NewLogger())
	return f
}

func testGuardConfig() config.AbuseConfig {
	return config.AbuseConfig{
		MaxBytesPerMinute:    1 << 30,
		MaxConnectsPerMinute: 10,
		BanDuration:          time.Hour,
	}
}

func testAccount(t *testing.T, userID uint, riskScore int) *user.User {
	t.Helper()
	now := time.Now().UTC()
	account, err := user.ReconstructUser(
		userID, "u_suspect1", "suspect", "hashed:pw",
		authorization.RoleUser, 100, riskScore, 1, now, now,
	)
	require.NoError(t, err)
	return account
}

func TestGuard_AllowsNormalUse(t *testing.T) {
	f := newGuardFixture(testGuardConfig())

	assert.NoError(t, f.guard.CheckConnect(context.Background(), 7))
	assert.NoError(t, f.guard.CheckTraffic(context.Background(), 7, 1<<20))
	assert.False(t, f.store.banned)
	assert.Empty(t, f.ledger.entries)
	assert.Empty(t, f.closer.closedUsers)
}

func TestGuard_BansOnConnectFlood(t *testing.T) {
	f := newGuardFixture(testGuardConfig())
	f.store.connects = 10

	account := testAccount(t, 7, 0)
	f.userRepo.On("GetByID", mock.Anything, uint(7)).Return(account, nil)
	f.userRepo.On("Update", mock.Anything, account).Return(nil)

	err := f.guard.CheckConnect(context.Background(), 7)

	assert.Error(t, err)
	assert.True(t, f.store.banned)
	assert.Equal(t, time.Hour, f.store.banDuration)
	assert.Equal(t, 25, account.RiskScore())
	assert.Len(t, f.mailer.alerts, 1)
}

func TestGuard_BansOnTrafficFlood(t *testing.T) {
	cfg := testGuardConfig()
	cfg.MaxBytesPerMinute = 1 << 20
	f := newGuardFixture(cfg)
	f.store.bytes = 1 << 20

	account := testAccount(t, 7, 50)
	f.userRepo.On("GetByID", mock.Anything, uint(7)).Return(account, nil)
	f.userRepo.On("Update", mock.Anything, account).Return(nil)

	err := f.guard.CheckTraffic(context.Background(), 7, 4096)

	assert.Error(t, err)
	assert.True(t, f.store.banned)
	assert.Equal(t, 75, account.RiskScore())
}

func TestGuard_BanPostsPenaltyAndClosesSessions(t *testing.T) {
	f := newGuardFixture(testGuardConfig())
	f.store.connects = 10
	f.closer.closed = 2

	account := testAccount(t, 7, 0)
	f.userRepo.On("GetByID", mock.Anything, uint(7)).Return(account, nil)
	f.userRepo.On("Update", mock.Anything, account).Return(nil)

	err := f.guard.CheckConnect(context.Background(), 7)
	require.Error(t, err)

	require.Len(t, f.ledger.entries, 1)
	entry := f.ledger.entries[0]
	assert.Equal(t, ledger.TransactionPenalty, entry.Type())
	assert.Equal(t, uint(7), entry.UserID())
	assert.Equal(t, int64(0), entry.Amount(), "the ban penalty is informational")
	assert.Contains(t, entry.Description(), "connect flood")

	require.Len(t, f.closer.closedUsers, 1)
	assert.Equal(t, uint(7), f.closer.closedUsers[0])
	assert.Equal(t, session.CloseAbuse, f.closer.reasons[0],
		"every open session of the banned user closes as ABUSE")
}

func TestGuard_RejectsBannedUser(t *testing.T) {
	f := newGuardFixture(testGuardConfig())
	f.store.banned = true
	f.store.banReason = "connect flood"

	err := f.guard.CheckConnect(context.Background(), 7)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "banned")
	assert.Empty(t, f.ledger.entries, "a rejection without a fresh ban posts nothing")
}

func TestGuard_DisabledLimitsNeverBan(t *testing.T) {
	f := newGuardFixture(config.AbuseConfig{})
	f.store.connects = 1_000_000
	f.store.bytes = 1 << 40

	assert.NoError(t, f.guard.CheckConnect(context.Background(), 7))
	assert.NoError(t, f.guard.CheckTraffic(context.Background(), 7, 4096))
}
