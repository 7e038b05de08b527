package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/mappers"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/db"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// LedgerRepositoryImpl implements the ledger.TransactionRepository interface
type LedgerRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.CreditTransactionMapper
	logger logger.Interface
}

// NewLedgerRepository creates a new ledger repository instance
func NewLedgerRepository(database *gorm.DB, logger logger.Interface) ledger.TransactionRepository {
	return &LedgerRepositoryImpl{
		db:     database,
		mapper: mappers.NewCreditTransactionMapper(),
		logger: logger,
	}
}

func (r *LedgerRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Record appends a ledger entry and adjusts the user's cached balance in one
// database transaction. A deduction only lands through a conditional update
// whose predicate keeps the balance non-negative: when it matches no row the
// user either does not exist or cannot afford the amount, and nothing is
// written. Callers holding an ambient transaction get a savepoint, so a
// failed entry rolls back without tearing down the outer settlement.
func (r *LedgerRepositoryImpl) Record(ctx context.Context, entry *ledger.Transaction) error {
	model, err := r.mapper.ToModel(entry)
	if err != nil {
		return fmt.Errorf("failed to map transaction entity: %w", err)
	}

	err = r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		balanceUpdate := tx.Model(&models.UserModel{}).
			Where("id = ?", model.UserID)
		if model.Amount < 0 {
			balanceUpdate = balanceUpdate.Where("credits + ? >= 0", model.Amount)
		}
		result := balanceUpdate.UpdateColumn("credits", gorm.Expr("credits + ?", model.Amount))
		if result.Error != nil {
			return fmt.Errorf("failed to adjust cached balance: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&models.UserModel{}).Where("id = ?", model.UserID).Count(&exists).Error; err != nil {
				return fmt.Errorf("failed to check user existence: %w", err)
			}
			if exists == 0 {
				return errors.NewNotFoundError("user not found", fmt.Sprintf("id=%d", model.UserID))
			}
			return errors.NewInsufficientCreditsError("balance cannot cover the deduction")
		}

		if err := tx.Create(model).Error; err != nil {
			if errors.IsDuplicateError(err) {
				return errors.NewConflictError("settlement entry already posted for this session")
			}
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := entry.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set transaction ID: %w", err)
	}

	r.logger.Debugw("ledger entry recorded",
		"user_id", model.UserID, "type", model.Type, "amount", model.Amount)
	return nil
}

// Balance returns the user's cached ledger balance.
func (r *LedgerRepositoryImpl) Balance(ctx context.Context, userID uint) (int64, error) {
	var model models.UserModel
	if err := r.getDB(ctx).Select("credits").First(&model, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, errors.NewNotFoundError("user not found", fmt.Sprintf("id=%d", userID))
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return model.Credits, nil
}

// History returns the user's most recent ledger entries, newest first.
func (r *LedgerRepositoryImpl) History(ctx context.Context, userID uint, limit int) ([]*ledger.Transaction, error) {
	if limit <= 0 || limit > constants.CreditHistoryLimit {
		limit = constants.CreditHistoryLimit
	}

	var txModels []*models.CreditTransactionModel
	if err := r.getDB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&txModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger history: %w", err)
	}
	return r.mapper.ToEntities(txModels)
}

// SumByUser folds the user's entries.
func (r *LedgerRepositoryImpl) SumByUser(ctx context.Context, userID uint) (int64, error) {
	var total int64
	if err := r.getDB(ctx).Model(&models.CreditTransactionModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return total, nil
}

// VerifyBalances recomputes every user's fold against the cached balance and
// returns the mismatches. Read-only: repair is an operator decision.
func (r *LedgerRepositoryImpl) VerifyBalances(ctx context.Context) ([]ledger.Discrepancy, error) {
	type row struct {
		UserID   uint
		UserSID  string
		Cached   int64
		Computed int64
	}
	var rows []row
	query := fmt.Sprintf(`
		SELECT u.id AS user_id, u.sid AS user_sid, u.credits AS cached, COALESCE(t.total, 0) AS computed
		FROM %s u
		LEFT JOIN (
			SELECT user_id, SUM(amount) AS total FROM %s GROUP BY user_id
		) t ON t.user_id = u.id
		WHERE u.credits <> COALESCE(t.total, 0)`,
		constants.TableUsers, constants.TableCreditTransactions)
	if err := r.getDB(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to verify balances: %w", err)
	}

	discrepancies := make([]ledger.Discrepancy, 0, len(rows))
	for _, row := range rows {
		discrepancies = append(discrepancies, ledger.Discrepancy{
			UserID:   row.UserID,
			UserSID:  row.UserSID,
			Cached:   row.Cached,
			Computed: row.Computed,
		})
	}
	return discrepancies, nil
}

// CreditsInCirculation sums all positive balances.
func (r *LedgerRepositoryImpl) CreditsInCirculation(ctx context.Context) (int64, error) {
	var total int64
	if err := r.getDB(ctx).Model(&models.UserModel{}).
		Select("COALESCE(SUM(credits), 0)").
		Where("credits > 0").
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum circulating credits: %w", err)
	}
	return total, nil
}

// ExistsForSession reports whether a settlement entry of the given type was
// already posted for the session.
func (r *LedgerRepositoryImpl) ExistsForSession(ctx context.Context, sessionID uint, txType ledger.TransactionType) (bool, error) {
	var count int64
	if err := r.getDB(ctx).Model(&models.CreditTransactionModel{}).
		Where("session_id = ? AND type = ?", sessionID, txType.String()).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check settlement entry: %w", err)
	}
	return count > 0, nil
}
