package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/mappers"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
	"github.com/worldvpn/broker/internal/shared/db"
	"github.com/worldvpn/broker/internal/shared/errors"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// NodeRepositoryImpl implements the node.NodeRepository interface
type NodeRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.NodeMapper
	logger logger.Interface
}

// NewNodeRepository creates a new node repository instance
func NewNodeRepository(database *gorm.DB, logger logger.Interface) node.NodeRepository {
	return &NodeRepositoryImpl{
		db:     database,
		mapper: mappers.NewNodeMapper(),
		logger: logger,
	}
}

func (r *NodeRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new node in the database
func (r *NodeRepositoryImpl) Create(ctx context.Context, entity *node.Node) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		r.logger.Errorw("failed to map node entity to model", "error", err)
		return fmt.Errorf("failed to map node entity: %w", err)
	}

	if err := r.getDB(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("node with this identity is already registered")
		}
		r.logger.Errorw("failed to create node in database", "error", err)
		return fmt.Errorf("failed to create node: %w", err)
	}

	if err := entity.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set node ID: %w", err)
	}

	r.logger.Infow("node created", "id", model.ID, "sid", model.SID, "group", model.GroupTag)
	return nil
}

// GetByID retrieves a node by internal ID
func (r *NodeRepositoryImpl) GetByID(ctx context.Context, id uint) (*node.Node, error) {
	var model models.NodeModel
	if err := r.getDB(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("node not found", fmt.Sprintf("id=%d", id))
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetBySID retrieves a node by external identifier
func (r *NodeRepositoryImpl) GetBySID(ctx context.Context, sid string) (*node.Node, error) {
	var model models.NodeModel
	if err := r.getDB(ctx).Where("sid = ?", sid).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("node not found", fmt.Sprintf("sid=%s", sid))
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetByTokenHash retrieves a node by agent API token hash
func (r *NodeRepositoryImpl) GetByTokenHash(ctx context.Context, tokenHash string) (*node.Node, error) {
	var model models.NodeModel
	if err := r.getDB(ctx).Where("api_token_hash = ?", tokenHash).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("node not found")
		}
		return nil, fmt.Errorf("failed to get node by token: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetByIdentityHash retrieves a node by its public identity hash
func (r *NodeRepositoryImpl) GetByIdentityHash(ctx context.Context, identityHash string) (*node.Node, error) {
	var model models.NodeModel
	if err := r.getDB(ctx).Where("pub_identity_hash = ?", identityHash).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("node not found")
		}
		return nil, fmt.Errorf("failed to get node by identity: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// Update persists node mutations. The current_connections counter is
// deliberately excluded: only the conditional reserve/release updates touch
// it, so a stale aggregate loaded before a reservation cannot clobber it.
func (r *NodeRepositoryImpl) Update(ctx context.Context, entity *node.Node) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map node entity: %w", err)
	}

	result := r.getDB(ctx).Model(&models.NodeModel{}).
		Where("id = ?", model.ID).
		UpdateColumns(map[string]interface{}{
			"name":                 model.Name,
			"country_code":         model.CountryCode,
			"city":                 model.City,
			"bandwidth_mbps":       model.BandwidthMbps,
			"max_connections":      model.MaxConnections,
			"reported_connections": model.ReportedConnections,
			"protocols":            model.Protocols,
			"allowed_countries":    model.AllowedCountries,
			"blocked_countries":    model.BlockedCountries,
			"allow_streaming":      model.AllowStreaming,
			"allow_torrents":       model.AllowTorrents,
			"daily_byte_cap":       model.DailyByteCap,
			"uptime_percent":       model.UptimePercent,
			"avg_latency_ms":       model.AvgLatencyMs,
			"reputation":           model.Reputation,
			"online":               model.Online,
			"last_heartbeat_at":    model.LastHeartbeatAt,
			"disabled":             model.Disabled,
			"version":              model.Version,
			"updated_at":           model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update node", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update node: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("node not found", fmt.Sprintf("id=%d", model.ID))
	}
	return nil
}

// ListByOwner retrieves all nodes registered by an account
func (r *NodeRepositoryImpl) ListByOwner(ctx context.Context, ownerID uint) ([]*node.Node, error) {
	var nodeModels []*models.NodeModel
	if err := r.getDB(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at ASC").
		Find(&nodeModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list nodes by owner: %w", err)
	}
	return r.mapper.ToEntities(nodeModels)
}
