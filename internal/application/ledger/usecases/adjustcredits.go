package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type AdjustCreditsCommand struct {
	UserSID string
	Amount  int64
	Reason  string
}

type AdjustCreditsResult struct {
	UserSID    string
	Amount     int64
	Type       string
	NewBalance int64
}

// AdjustCreditsUseCase is the operator's manual ledger entry: a positive
// amount posts a BONUS, a negative one a PENALTY. A penalty that would
// overdraw the account is rejected by the ledger, same as any SPENT.
type AdjustCreditsUseCase struct {
	userRepo   user.UserRepository
	ledgerRepo ledger.TransactionRepository
	logger     logger.Interface
}

func NewAdjustCreditsUseCase(
	userRepo user.UserRepository,
	ledgerRepo ledger.TransactionRepository,
	logger logger.Interface,
) *AdjustCreditsUseCase {
	return &AdjustCreditsUseCase{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

func (uc *AdjustCreditsUseCase) Execute(ctx context.Context, cmd AdjustCreditsCommand) (*AdjustCreditsResult, error) {
	if cmd.Amount == 0 {
		return nil, errors.NewValidationError("amount must not be zero")
	}
	if cmd.Reason == "" {
		return nil, errors.NewValidationError("a reason is required for manual adjustments")
	}

	account, err := uc.userRepo.GetBySID(ctx, cmd.UserSID)
	if err != nil {
		return nil, err
	}

	txType := ledger.TransactionBonus
	if cmd.Amount < 0 {
		txType = ledger.TransactionPenalty
	}

	entry, err := ledger.NewTransaction(account.ID(), nil, cmd.Amount, txType, cmd.Reason)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := uc.ledgerRepo.Record(ctx, entry); err != nil {
		return nil, err
	}

	balance, err := uc.ledgerRepo.Balance(ctx, account.ID())
	if err != nil {
		return nil, err
	}

	uc.logger.Infow("manual credit adjustment",
		"user_sid", account.SID(),
		"amount", cmd.Amount,
		"type", txType,
		"reason", cmd.Reason,
	)
	return &AdjustCreditsResult{
		UserSID:    account.SID(),
		Amount:     cmd.Amount,
		Type:       txType.String(),
		NewBalance: balance,
	}, nil
}
