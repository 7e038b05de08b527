package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
	"github.com/worldvpn/broker/internal/shared/biztime"
)

// ListEligible returns online, enabled nodes with free capacity and an
// unexhausted daily quota matching the filter. The cheap column predicates
// run in SQL; the per-node country allow/block lists and protocol membership
// live in JSON columns and are applied after mapping.
func (r *NodeRepositoryImpl) ListEligible(ctx context.Context, filter node.EligibilityFilter) ([]*node.Node, error) {
	query := r.getDB(ctx).Model(&models.NodeModel{}).
		Where("online = ?", true).
		Where("disabled = ?", false).
		Where("current_connections < max_connections").
		Where("daily_byte_cap = 0 OR traffic_used_today < daily_byte_cap")

	if filter.Group != nil {
		query = query.Where("group_tag = ?", filter.Group.String())
	}
	if filter.NodeCountry != nil {
		query = query.Where("country_code = ?", *filter.NodeCountry)
	}

	var nodeModels []*models.NodeModel
	if err := query.Find(&nodeModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list eligible nodes: %w", err)
	}

	candidates, err := r.mapper.ToEntities(nodeModels)
	if err != nil {
		return nil, err
	}

	eligible := make([]*node.Node, 0, len(candidates))
	for _, n := range candidates {
		if filter.Protocol != nil && !n.Protocols().Contains(*filter.Protocol) {
			continue
		}
		if filter.ClientCountry != "" && !n.Policy().AllowsCountry(filter.ClientCountry) {
			continue
		}
		eligible = append(eligible, n)
	}
	return eligible, nil
}

// ReserveSlot atomically claims one capacity slot with a conditional update.
// The predicate re-checks liveness and capacity at write time, so two
// matchers racing for the last slot resolve in the database: exactly one
// update matches, the other sees zero rows affected.
func (r *NodeRepositoryImpl) ReserveSlot(ctx context.Context, nodeID uint) (bool, error) {
	result := r.getDB(ctx).Model(&models.NodeModel{}).
		Where("id = ? AND online = ? AND disabled = ? AND current_connections < max_connections",
			nodeID, true, false).
		UpdateColumns(map[string]interface{}{
			"current_connections": gorm.Expr("current_connections + 1"),
			"updated_at":          biztime.NowUTC(),
		})
	if result.Error != nil {
		r.logger.Errorw("failed to reserve node slot", "node_id", nodeID, "error", result.Error)
		return false, fmt.Errorf("failed to reserve slot: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReleaseSlot atomically returns one capacity slot. The counter never goes
// below zero; the close flip on the session guarantees each slot is released
// at most once.
func (r *NodeRepositoryImpl) ReleaseSlot(ctx context.Context, nodeID uint) error {
	result := r.getDB(ctx).Model(&models.NodeModel{}).
		Where("id = ? AND current_connections > 0", nodeID).
		UpdateColumns(map[string]interface{}{
			"current_connections": gorm.Expr("current_connections - 1"),
			"updated_at":          biztime.NowUTC(),
		})
	if result.Error != nil {
		r.logger.Errorw("failed to release node slot", "node_id", nodeID, "error", result.Error)
		return fmt.Errorf("failed to release slot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		r.logger.Warnw("slot release matched no rows", "node_id", nodeID)
	}
	return nil
}

// ListStaleOnline returns online nodes of the group whose last heartbeat
// predates the cutoff. Nodes that never heartbeated but are flagged online
// (imported rows with a cleared timestamp) are included.
func (r *NodeRepositoryImpl) ListStaleOnline(ctx context.Context, group node.Group, cutoff time.Time) ([]*node.Node, error) {
	var nodeModels []*models.NodeModel
	if err := r.getDB(ctx).
		Where("online = ? AND group_tag = ?", true, group.String()).
		Where("last_heartbeat_at IS NULL OR last_heartbeat_at < ?", cutoff).
		Find(&nodeModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale nodes: %w", err)
	}
	return r.mapper.ToEntities(nodeModels)
}

// ListOfflineSince returns offline community nodes seen within the horizon,
// so reputation keeps decaying while they stay silent.
func (r *NodeRepositoryImpl) ListOfflineSince(ctx context.Context, horizon time.Time) ([]*node.Node, error) {
	var nodeModels []*models.NodeModel
	if err := r.getDB(ctx).
		Where("online = ? AND group_tag = ?", false, node.GroupCommunity.String()).
		Where("last_heartbeat_at >= ?", horizon).
		Find(&nodeModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list offline nodes: %w", err)
	}
	return r.mapper.ToEntities(nodeModels)
}

// AddDailyTraffic atomically adds flushed relay bytes to the node's daily
// counter.
func (r *NodeRepositoryImpl) AddDailyTraffic(ctx context.Context, nodeID uint, bytes uint64) error {
	result := r.getDB(ctx).Model(&models.NodeModel{}).
		Where("id = ?", nodeID).
		UpdateColumns(map[string]interface{}{
			"traffic_used_today": gorm.Expr("traffic_used_today + ?", bytes),
			"updated_at":         biztime.NowUTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to add daily traffic: %w", result.Error)
	}
	return nil
}

// ResetDailyTraffic zeroes every node's daily counter; runs at UTC midnight.
func (r *NodeRepositoryImpl) ResetDailyTraffic(ctx context.Context) (int64, error) {
	result := r.getDB(ctx).Model(&models.NodeModel{}).
		Where("traffic_used_today > 0").
		UpdateColumns(map[string]interface{}{
			"traffic_used_today": 0,
			"updated_at":         biztime.NowUTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset daily traffic: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountByGroup aggregates directory totals for transparency stats.
func (r *NodeRepositoryImpl) CountByGroup(ctx context.Context) ([]node.GroupCount, error) {
	type row struct {
		GroupTag string
		Total    int64
		Online   int64
	}
	var rows []row
	if err := r.getDB(ctx).Model(&models.NodeModel{}).
		Select("group_tag, COUNT(*) AS total, SUM(CASE WHEN online THEN 1 ELSE 0 END) AS online").
		Group("group_tag").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count nodes by group: %w", err)
	}

	counts := make([]node.GroupCount, 0, len(rows))
	for _, r := range rows {
		group, err := node.ParseGroup(r.GroupTag)
		if err != nil {
			continue
		}
		counts = append(counts, node.GroupCount{Group: group, Total: r.Total, Online: r.Online})
	}
	return counts, nil
}
