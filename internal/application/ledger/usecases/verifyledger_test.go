package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func TestVerifyLedger_CleanLedger(t *testing.T) {
	ledgerRepo := new(mockLedgerRepository)
	mailer := &stubMailer{}
	uc := NewVerifyLedgerUseCase(ledgerRepo, mailer, logger.NewLogger())

	ledgerRepo.On("VerifyBalances", mock.Anything).Return([]ledger.Discrepancy{}, nil)

	drift, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Zero(t, drift)
	assert.Empty(t, mailer.alerts, "no alert for a clean ledger")
}

func TestVerifyLedger_AlertsOnDrift(t *testing.T) {
	ledgerRepo := new(mockLedgerRepository)
	mailer := &stubMailer{}
	uc := NewVerifyLedgerUseCase(ledgerRepo, mailer, logger.NewLogger())

	discrepancies := []ledger.Discrepancy{
		{UserID: 7, UserSID: "u_target01", Cached: 100, Computed: 90},
		{UserID: 9, UserSID: "u_target02", Cached: 5, Computed: 50},
	}
	ledgerRepo.On("VerifyBalances", mock.Anything).Return(discrepancies, nil)

	drift, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, drift)
	require.Len(t, mailer.alerts, 1)
	assert.Equal(t, discrepancies, mailer.alerts[0])
}

func TestVerifyLedger_MailFailureDoesNotFailJob(t *testing.T) {
	ledgerRepo := new(mockLedgerRepository)
	mailer := &stubMailer{err: assert.AnError}
	uc := NewVerifyLedgerUseCase(ledgerRepo, mailer, logger.NewLogger())

	ledgerRepo.On("VerifyBalances", mock.Anything).Return([]ledger.Discrepancy{
		{UserID: 7, UserSID: "u_target01", Cached: 100, Computed: 90},
	}, nil)

	drift, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, drift)
}
