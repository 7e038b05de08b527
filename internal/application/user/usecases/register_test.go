package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func TestRegisterUseCase_Execute_Success(t *testing.T) {
	userRepo := new(mockUserRepository)
	ledgerRepo := new(mockLedgerRepository)

	userRepo.On("ExistsByUsername", mock.Anything, "alice").Return(false, nil)
	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*user.User")).
		Run(func(args mock.Arguments) {
			account := args.Get(1).(*user.User)
			require.NoError(t, account.SetID(7))
		}).
		Return(nil)

	var recorded *ledger.Transaction
	ledgerRepo.On("Record", mock.Anything, mock.AnythingOfType("*ledger.Transaction")).
		Run(func(args mock.Arguments) {
			recorded = args.Get(1).(*ledger.Transaction)
		}).
		Return(nil)

	uc := NewRegisterUseCase(userRepo, ledgerRepo, stubHasher{}, passthroughTxManager{}, 100, logger.NewLogger())

	result, err := uc.Execute(context.Background(), RegisterCommand{
		Username: "Alice",
		Password: "correct-horse",
	})

	require.NoError(t, err)
	assert.Equal(t, "alice", result.Username)
	assert.Equal(t, int64(100), result.Credits)
	assert.NotEmpty(t, result.UserSID)

	require.NotNil(t, recorded, "signup bonus must be recorded")
	assert.Equal(t, ledger.TransactionBonus, recorded.Type())
	assert.Equal(t, int64(100), recorded.Amount())
	assert.Equal(t, uint(7), recorded.UserID())

	userRepo.AssertExpectations(t)
	ledgerRepo.AssertExpectations(t)
}

func TestRegisterUseCase_Execute_DuplicateUsername(t *testing.T) {
	userRepo := new(mockUserRepository)
	ledgerRepo := new(mockLedgerRepository)

	userRepo.On("ExistsByUsername", mock.Anything, "alice").Return(true, nil)

	uc := NewRegisterUseCase(userRepo, ledgerRepo, stubHasher{}, passthroughTxManager{}, 100, logger.NewLogger())

	_, err := uc.Execute(context.Background(), RegisterCommand{
		Username: "alice",
		Password: "correct-horse",
	})

	assert.True(t, errors.IsConflictError(err))
	ledgerRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestRegisterUseCase_Execute_ValidationErrors(t *testing.T) {
	uc := NewRegisterUseCase(new(mockUserRepository), new(mockLedgerRepository), stubHasher{}, passthroughTxManager{}, 100, logger.NewLogger())

	_, err := uc.Execute(context.Background(), RegisterCommand{Username: "", Password: "correct-horse"})
	assert.True(t, errors.IsValidationError(err))

	_, err = uc.Execute(context.Background(), RegisterCommand{Username: "alice", Password: "short"})
	assert.True(t, errors.IsValidationError(err))
}

func TestRegisterUseCase_Execute_NoBonusConfigured(t *testing.T) {
	userRepo := new(mockUserRepository)
	ledgerRepo := new(mockLedgerRepository)

	userRepo.On("ExistsByUsername", mock.Anything, "bob").Return(false, nil)
	userRepo.On("Create", mock.Anything, mock.AnythingOfType("*user.User")).
		Run(func(args mock.Arguments) {
			account := args.Get(1).(*user.User)
			require.NoError(t, account.SetID(8))
		}).
		Return(nil)

	uc := NewRegisterUseCase(userRepo, ledgerRepo, stubHasher{}, passthroughTxManager{}, 0, logger.NewLogger())

	result, err := uc.Execute(context.Background(), RegisterCommand{
		Username: "bob",
		Password: "correct-horse",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Credits)
	ledgerRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}
