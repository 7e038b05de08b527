package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func TestGetHistory_ClampsLimit(t *testing.T) {
	userRepo := new(mockUserRepository)
	ledgerRepo := new(mockLedgerRepository)
	uc := NewGetHistoryUseCase(userRepo, ledgerRepo, logger.NewLogger())

	account := testAccount(t, 7)
	sessionID := uint(42)
	entry, err := ledger.ReconstructTransaction(
		1, "t_abc12345", 7, &sessionID, -10, ledger.TransactionSpent,
		"relay usage", time.Now().UTC(),
	)
	require.NoError(t, err)

	userRepo.On("GetBySID", mock.Anything, "u_target01").Return(account, nil)
	ledgerRepo.On("Balance", mock.Anything, uint(7)).Return(int64(90), nil)
	ledgerRepo.On("History", mock.Anything, uint(7), constants.CreditHistoryLimit).
		Return([]*ledger.Transaction{entry}, nil)

	result, err := uc.Execute(context.Background(), GetHistoryQuery{
		UserSID: "u_target01",
		Limit:   10_000,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(90), result.Balance)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "SPENT", result.Transactions[0].Type)
	assert.Equal(t, int64(-10), result.Transactions[0].Amount)
}
