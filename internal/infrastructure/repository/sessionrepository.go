package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/mappers"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
	"github.com/worldvpn/broker/internal/shared/db"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

var openStatuses = []string{
	session.StatusRequested.String(),
	session.StatusMatched.String(),
	session.StatusActive.String(),
}

// SessionRepositoryImpl implements the session.SessionRepository interface
type SessionRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.PeerSessionMapper
	logger logger.Interface
}

// NewSessionRepository creates a new session repository instance
func NewSessionRepository(database *gorm.DB, logger logger.Interface) session.SessionRepository {
	return &SessionRepositoryImpl{
		db:     database,
		mapper: mappers.NewPeerSessionMapper(),
		logger: logger,
	}
}

func (r *SessionRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new session in the database
func (r *SessionRepositoryImpl) Create(ctx context.Context, entity *session.Session) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		r.logger.Errorw("failed to map session entity to model", "error", err)
		return fmt.Errorf("failed to map session entity: %w", err)
	}

	if err := r.getDB(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			// The unique index over active assigned IPs fired: a concurrent
			// connect drew the same address. The caller re-allocates.
			return errors.NewConflictError("assigned virtual IP already in use")
		}
		r.logger.Errorw("failed to create session in database", "error", err)
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := entity.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set session ID: %w", err)
	}

	return nil
}

// GetByID retrieves a session by internal ID
func (r *SessionRepositoryImpl) GetByID(ctx context.Context, id uint) (*session.Session, error) {
	var model models.PeerSessionModel
	if err := r.getDB(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("session not found", fmt.Sprintf("id=%d", id))
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves a session by external identifier
func (r *SessionRepositoryImpl) GetBySID(ctx context.Context, sid string) (*session.Session, error) {
	var model models.PeerSessionModel
	if err := r.getDB(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("session not found", fmt.Sprintf("sid=%s", sid))
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// Update persists session mutations. Status is updated here only along the
// forward transitions the aggregate already validated; the CLOSING flip has
// its own conditional path in BeginClose.
func (r *SessionRepositoryImpl) Update(ctx context.Context, entity *session.Session) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map session entity: %w", err)
	}

	result := r.getDB(ctx).Model(&models.PeerSessionModel{}).
		Where("id = ?", model.ID).
		UpdateColumns(map[string]interface{}{
			"node_id":           model.NodeID,
			"node_owner_id":     model.NodeOwnerID,
			"assigned_ip":       model.AssignedIP,
			"server_endpoint":   model.ServerEndpoint,
			"bytes_transferred": model.BytesTransferred,
			"credits_spent":     model.CreditsSpent,
			"credits_earned":    model.CreditsEarned,
			"status":            model.Status,
			"close_reason":      model.CloseReason,
			"settled":           model.Settled,
			"last_report_at":    model.LastReportAt,
			"ended_at":          model.EndedAt,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update session", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("session not found", fmt.Sprintf("id=%d", model.ID))
	}
	return nil
}

// ListActiveByNode retrieves open sessions hosted on a node
func (r *SessionRepositoryImpl) ListActiveByNode(ctx context.Context, nodeID uint) ([]*session.Session, error) {
	var sessionModels []*models.PeerSessionModel
	if err := r.getDB(ctx).
		Where("node_id = ? AND status IN ?", nodeID, openStatuses).
		Find(&sessionModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions by node: %w", err)
	}
	return r.mapper.ToEntities(sessionModels)
}

// ListActiveByUser retrieves a client's open sessions
func (r *SessionRepositoryImpl) ListActiveByUser(ctx context.Context, userID uint) ([]*session.Session, error) {
	var sessionModels []*models.PeerSessionModel
	if err := r.getDB(ctx).
		Where("user_id = ? AND status IN ?", userID, openStatuses).
		Find(&sessionModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions by user: %w", err)
	}
	return r.mapper.ToEntities(sessionModels)
}

// ListActive retrieves open sessions, oldest first
func (r *SessionRepositoryImpl) ListActive(ctx context.Context, limit int) ([]*session.Session, error) {
	query := r.getDB(ctx).
		Where("status IN ?", openStatuses).
		Order("started_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessionModels []*models.PeerSessionModel
	if err := query.Find(&sessionModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return r.mapper.ToEntities(sessionModels)
}
