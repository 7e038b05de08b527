package usecases

import (
	"context"
	"time"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type GetHistoryQuery struct {
	UserSID string
	Limit   int
}

type TransactionView struct {
	SID         string
	Amount      int64
	Type        string
	Description string
	CreatedAt   string
}

type GetHistoryResult struct {
	Balance      int64
	Transactions []TransactionView
}

type GetHistoryUseCase struct {
	userRepo   user.UserRepository
	ledgerRepo ledger.TransactionRepository
	logger     logger.Interface
}

func NewGetHistoryUseCase(
	userRepo user.UserRepository,
	ledgerRepo ledger.TransactionRepository,
	logger logger.Interface,
) *GetHistoryUseCase {
	return &GetHistoryUseCase{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

func (uc *GetHistoryUseCase) Execute(ctx context.Context, query GetHistoryQuery) (*GetHistoryResult, error) {
	account, err := uc.userRepo.GetBySID(ctx, query.UserSID)
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 || limit > constants.CreditHistoryLimit {
		limit = constants.CreditHistoryLimit
	}

	balance, err := uc.ledgerRepo.Balance(ctx, account.ID())
	if err != nil {
		return nil, err
	}

	entries, err := uc.ledgerRepo.History(ctx, account.ID(), limit)
	if err != nil {
		return nil, err
	}

	views := make([]TransactionView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, TransactionView{
			SID:         entry.SID(),
			Amount:      entry.Amount(),
			Type:        entry.Type().String(),
			Description: entry.Description(),
			CreatedAt:   entry.CreatedAt().UTC().Format(time.RFC3339),
		})
	}

	return &GetHistoryResult{Balance: balance, Transactions: views}, nil
}
