package usecases

import (
	"context"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type GetProfileQuery struct {
	UserSID string
}

type GetProfileResult struct {
	UserSID   string
	Username  string
	Role      string
	Credits   int64
	RiskScore int
	CreatedAt string
}

// GetProfileUseCase returns the caller's account view. The balance comes from
// the ledger repository, not the cached aggregate snapshot, so the number the
// user sees is the one settlement operates on.
type GetProfileUseCase struct {
	userRepo   user.UserRepository
	ledgerRepo ledger.TransactionRepository
	logger     logger.Interface
}

func NewGetProfileUseCase(
	userRepo user.UserRepository,
	ledgerRepo ledger.TransactionRepository,
	logger logger.Interface,
) *GetProfileUseCase {
	return &GetProfileUseCase{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

func (uc *GetProfileUseCase) Execute(ctx context.Context, query GetProfileQuery) (*GetProfileResult, error) {
	if query.UserSID == "" {
		return nil, errors.NewValidationError("user SID is required")
	}

	account, err := uc.userRepo.GetBySID(ctx, query.UserSID)
	if err != nil {
		return nil, err
	}

	balance, err := uc.ledgerRepo.Balance(ctx, account.ID())
	if err != nil {
		return nil, err
	}

	return &GetProfileResult{
		UserSID:   account.SID(),
		Username:  account.Username(),
		Role:      account.Role().String(),
		Credits:   balance,
		RiskScore: account.RiskScore(),
		CreatedAt: account.CreatedAt().Format("2006-01-02T15:04:05Z"),
	}, nil
}
