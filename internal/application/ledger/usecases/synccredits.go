package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

type SyncCreditsCommand struct {
	UserSID       string
	SharedBytes   int64
	ConsumedBytes int64
	Note          string
}

type SyncCreditsResult struct {
	CreditsChange int64
	Type          string
	NewBalance    int64
}

// SyncCreditsUseCase settles client-reported direct peer-to-peer traffic
// that never crossed a brokered session: bytes the client relayed for others
// earn, bytes it consumed spend, and only the net lands in the ledger.
// Brokered sessions are settled by the traffic reports, never here.
type SyncCreditsUseCase struct {
	userRepo   user.UserRepository
	ledgerRepo ledger.TransactionRepository
	policy     *ledger.SettlementPolicy
	sanitizer  *bluemonday.Policy
	logger     logger.Interface
}

func NewSyncCreditsUseCase(
	userRepo user.UserRepository,
	ledgerRepo ledger.TransactionRepository,
	policy *ledger.SettlementPolicy,
	logger logger.Interface,
) *SyncCreditsUseCase {
	return &SyncCreditsUseCase{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		policy:     policy,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger,
	}
}

func (uc *SyncCreditsUseCase) Execute(ctx context.Context, cmd SyncCreditsCommand) (*SyncCreditsResult, error) {
	if cmd.SharedBytes < 0 || cmd.ConsumedBytes < 0 {
		return nil, errors.NewValidationError("byte counts must not be negative")
	}

	account, err := uc.userRepo.GetBySID(ctx, cmd.UserSID)
	if err != nil {
		return nil, err
	}

	earned := cmd.SharedBytes / uc.policy.BytesPerCredit
	spent := cmd.ConsumedBytes / uc.policy.BytesPerCredit
	net := earned - spent

	if net == 0 {
		balance, err := uc.ledgerRepo.Balance(ctx, account.ID())
		if err != nil {
			return nil, err
		}
		return &SyncCreditsResult{CreditsChange: 0, NewBalance: balance}, nil
	}

	txType := ledger.TransactionEarned
	if net < 0 {
		txType = ledger.TransactionSpent
	}

	desc := fmt.Sprintf("peer sync: shared %d MiB, consumed %d MiB", earned, spent)
	if note := strings.TrimSpace(uc.sanitizer.Sanitize(cmd.Note)); note != "" {
		desc = desc + " - " + note
	}

	entry, err := ledger.NewTransaction(account.ID(), nil, net, txType, desc)
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

	uc.logger.Infow("peer traffic synced",
		"user_sid", account.SID(),
		"shared_bytes", cmd.SharedBytes,
		"consumed_bytes", cmd.ConsumedBytes,
		"credits_change", net,
	)
	return &SyncCreditsResult{
		CreditsChange: net,
		Type:          txType.String(),
		NewBalance:    balance,
	}, nil
}
