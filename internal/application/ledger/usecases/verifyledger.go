package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// VerifyLedgerUseCase recomputes every user's balance from their entries and
// reports drift. It alerts, it never repairs: a mismatch means a bug or
// tampering, and silently rewriting either side would destroy the evidence.
type VerifyLedgerUseCase struct {
	ledgerRepo ledger.TransactionRepository
	mailer     AlertMailer
	logger     logger.Interface
}

func NewVerifyLedgerUseCase(
	ledgerRepo ledger.TransactionRepository,
	mailer AlertMailer,
	logger logger.Interface,
) *VerifyLedgerUseCase {
	return &VerifyLedgerUseCase{
		ledgerRepo: ledgerRepo,
		mailer:     mailer,
		logger:     logger,
	}
}

// Execute returns the number of accounts whose cached balance disagrees with
// the ledger fold.
func (uc *VerifyLedgerUseCase) Execute(ctx context.Context) (int, error) {
	discrepancies, err := uc.ledgerRepo.VerifyBalances(ctx)
	if err != nil {
		return 0, err
	}
	if len(discrepancies) == 0 {
		return 0, nil
	}

	for _, d := range discrepancies {
		uc.logger.Errorw("ledger balance drift",
			"user_sid", d.UserSID,
			"cached", d.Cached,
			"computed", d.Computed,
		)
	}

	if uc.mailer != nil {
		if err := uc.mailer.SendLedgerAlert(discrepancies); err != nil {
			uc.logger.Errorw("failed to send ledger alert", "error", err)
		}
	}
	return len(discrepancies), nil
}
