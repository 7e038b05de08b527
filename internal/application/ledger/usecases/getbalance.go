package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type GetBalanceQuery struct {
	UserSID string
}

type GetBalanceResult struct {
	UserSID string
	Balance int64
}

type GetBalanceUseCase struct {
	userRepo   user.UserRepository
	ledgerRepo ledger.TransactionRepository
	logger     logger.Interface
}

func NewGetBalanceUseCase(
	userRepo user.UserRepository,
	ledgerRepo ledger.TransactionRepository,
	logger logger.Interface,
) *GetBalanceUseCase {
	return &GetBalanceUseCase{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

func (uc *GetBalanceUseCase) Execute(ctx context.Context, query GetBalanceQuery) (*GetBalanceResult, error) {
	account, err := uc.userRepo.GetBySID(ctx, query.UserSID)
	if err != nil {
		return nil, err
	}

	// Balance always comes from the ledger fold's cached value, never from a
	// projection the caller could have raced.
	balance, err := uc.ledgerRepo.Balance(ctx, account.ID())
	if err != nil {
		return nil, err
	}

	return &GetBalanceResult{UserSID: account.SID(), Balance: balance}, nil
}
