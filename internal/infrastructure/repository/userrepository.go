package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/mappers"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
	"github.com/worldvpn/broker/internal/shared/db"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// UserRepositoryImpl implements the user.UserRepository interface
type UserRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.UserMapper
	logger logger.Interface
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(database *gorm.DB, logger logger.Interface) user.UserRepository {
	return &UserRepositoryImpl{
		db:     database,
		mapper: mappers.NewUserMapper(),
		logger: logger,
	}
}

// getDB returns the ambient transaction when one is bound to the context.
func (r *UserRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new account in the database
func (r *UserRepositoryImpl) Create(ctx context.Context, entity *user.User) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		r.logger.Errorw("failed to map user entity to model", "error", err)
		return fmt.Errorf("failed to map user entity: %w", err)
	}

	if err := r.getDB(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("username already taken")
		}
		r.logger.Errorw("failed to create user in database", "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := entity.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set user ID: %w", err)
	}

	r.logger.Infow("user created", "id", model.ID, "username", model.Username)
	return nil
}

// GetByID retrieves an account by internal ID
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id uint) (*user.User, error) {
	var model models.UserModel
	if err := r.getDB(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("user not found", fmt.Sprintf("id=%d", id))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves an account by external identifier
func (r *UserRepositoryImpl) GetBySID(ctx context.Context, sid string) (*user.User, error) {
	var model models.UserModel
	if err := r.getDB(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("user not found", fmt.Sprintf("sid=%s", sid))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetByUsername retrieves an account by normalized username
func (r *UserRepositoryImpl) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	var model models.UserModel
	username = strings.ToLower(strings.TrimSpace(username))
	if err := r.getDB(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("user not found", fmt.Sprintf("username=%s", username))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// Update persists account mutations. The credits column is deliberately
// excluded: the ledger repository owns it.
func (r *UserRepositoryImpl) Update(ctx context.Context, entity *user.User) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map user entity: %w", err)
	}

	result := r.getDB(ctx).Model(&models.UserModel{}).
		Where("id = ?", model.ID).
		UpdateColumns(map[string]interface{}{
			"password_hash": model.PasswordHash,
			"role":          model.Role,
			"risk_score":    model.RiskScore,
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update user", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("user not found", fmt.Sprintf("id=%d", model.ID))
	}
	return nil
}

// ExistsByUsername reports whether the normalized username is taken
func (r *UserRepositoryImpl) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	username = strings.ToLower(strings.TrimSpace(username))
	if err := r.getDB(ctx).Model(&models.UserModel{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return count > 0, nil
}
