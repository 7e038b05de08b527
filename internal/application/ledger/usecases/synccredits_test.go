package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func syncPolicy() *ledger.SettlementPolicy {
	return &ledger.SettlementPolicy{
		BytesPerCredit:  1 << 20,
		ShareMultiplier: 1.2,
		TrafficClasses:  map[string]float64{"general": 1.0},
	}
}

func TestSyncCredits_NetEarn(t *testing.T) {
	userRepo := new(mockUserRepository)
	ledgerRepo := new(mockLedgerRepository)
	uc := NewSyncCreditsUseCase(userRepo, ledgerRepo, syncPolicy(), logger.NewLogger())

	account := testAccount(t, 7)
	userRepo.On("GetBySID", mock.Anything, "u_target01").Return(account, nil)

	var recorded *ledger.Transaction
	ledgerRepo.On("Record", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*ledger.Transaction)
	}).Return(nil)
	ledgerRepo.On("Balance", mock.Anything, uint(7)).Return(int64(108), nil)

	result, err := uc.Execute(context.Background(), SyncCreditsCommand{
		UserSID:       "u_target01",
		SharedBytes:   10 << 20,
		ConsumedBytes: 2 << 20,
	})

	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, ledger.TransactionEarned, recorded.Type())
	assert.Equal(t, int64(8), recorded.Amount())
	assert.Equal(t, int64(8), result.CreditsChange)
	assert.Equal(t, "EARNED", result.Type)
	assert.Equal(t, int64(108), result.NewBalance)
}

func TestSyncCredits_NetSpend(t *testing.T) {
	userRepo := new(mockUserRepository)
	ledgerRepo := new(mockLedgerRepository)
	uc := NewSyncCreditsUseCase(userRepo, ledgerRepo, syncPolicy(), logger.NewLogger())

	account := testAccount(t, 7)
	userRepo.On("GetBySID", mock.Anything, "u_target01").Return(account, nil)

	var recorded *ledger.Transaction
	ledgerRepo.On("Record", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*ledger.Transaction)
	}).Return(nil)
	ledgerRepo.On("Balance", mock.Anything, uint(7)).Return(int64(95), nil)

	result, err := uc.Execute(context.Background(), SyncCreditsCommand{
		UserSID:       "u_target01",
		SharedBytes:   1 << 20,
		ConsumedBytes: 6 << 20,
	})

	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionSpent, recorded.Type())
	assert.Equal(t, int64(-5), recorded.Amount())
	assert.Equal(t, "SPENT", result.Type)
}

func TestSyncCredits_NoChangeSkipsLedger(t *testing.T) {
	userRepo := new(mockUserRepository)
	ledgerRepo := new(mockLedgerRepository)
	uc := NewSyncCreditsUseCase(userRepo, ledgerRepo, syncPolicy(), logger.NewLogger())

	account := testAccount(t, 7)
	userRepo.On("GetBySID", mock.Anything, "u_target01").Return(account, nil)
	ledgerRepo.On("Balance", mock.Anything, uint(7)).Return(int64(100), nil)

	// Sub-MiB amounts round down to zero credits on both legs.
	result, err := uc.Execute(context.Background(), SyncCreditsCommand{
		UserSID:       "u_target01",
		SharedBytes:   512,
		ConsumedBytes: 1024,
	})

	require.NoError(t, err)
	assert.Zero(t, result.CreditsChange)
	assert.Empty(t, result.Type)
	ledgerRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestSyncCredits_NoteIsSanitized(t *testing.T) {
	userRepo := new(mockUserRepository)
	ledgerRepo := new(mockLedgerRepository)
	uc := NewSyncCreditsUseCase(userRepo, ledgerRepo, syncPolicy(), logger.NewLogger())

	account := testAccount(t, 7)
	userRepo.On("GetBySID", mock.Anything, "u_target01").Return(account, nil)

	var recorded *ledger.Transaction
	ledgerRepo.On("Record", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*ledger.Transaction)
	}).Return(nil)
	ledgerRepo.On("Balance", mock.Anything, uint(7)).Return(int64(101), nil)

	_, err := uc.Execute(context.Background(), SyncCreditsCommand{
		UserSID:     "u_target01",
		SharedBytes: 1 << 20,
		Note:        "<script>alert(1)</script>laptop relay",
	})

	require.NoError(t, err)
	assert.NotContains(t, recorded.Description(), "<script>")
	assert.Contains(t, recorded.Description(), "laptop relay")
}

func TestSyncCredits_RejectsNegativeBytes(t *testing.T) {
	uc := NewSyncCreditsUseCase(new(mockUserRepository), new(mockLedgerRepository), syncPolicy(), logger.NewLogger())

	_, err := uc.Execute(context.Background(), SyncCreditsCommand{
		UserSID:     "u_target01",
		SharedBytes: -1,
	})
	assert.True(t, errors.IsValidationError(err))
}
