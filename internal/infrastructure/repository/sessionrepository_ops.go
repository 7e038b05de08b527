package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
	"github.com/worldvpn/broker/internal/shared/biztime"
)

// BeginClose runs the exactly-once close flip. The conditional update only
// matches while the session is still open, so when a client disconnect, a
// liveness sweep and an operator teardown race, exactly one caller observes
// RowsAffected > 0 and runs settlement; the rest back off.
func (r *SessionRepositoryImpl) BeginClose(ctx context.Context, sessionID uint, reason session.CloseReason) (bool, error) {
	result := r.getDB(ctx).Model(&models.PeerSessionModel{}).
		Where("id = ? AND status IN ?", sessionID, openStatuses).
		UpdateColumns(map[string]interface{}{
			"status":       session.StatusClosing.String(),
			"close_reason": reason.String(),
			"updated_at":   biztime.NowUTC(),
		})
	if result.Error != nil {
		r.logger.Errorw("failed to flip session to closing", "session_id", sessionID, "error", result.Error)
		return false, fmt.Errorf("failed to begin close: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListMatchedBefore returns MATCHED sessions created before the cutoff that
// never received a traffic report.
func (r *SessionRepositoryImpl) ListMatchedBefore(ctx context.Context, cutoff time.Time) ([]*session.Session, error) {
	var sessionModels []*models.PeerSessionModel
	if err := r.getDB(ctx).
		Where("status = ? AND last_report_at IS NULL AND started_at < ?", session.StatusMatched.String(), cutoff).
		Find(&sessionModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list unreported sessions: %w", err)
	}
	return r.mapper.ToEntities(sessionModels)
}

// ListActiveAssignedIPs returns the virtual IPs currently held by open
// sessions.
func (r *SessionRepositoryImpl) ListActiveAssignedIPs(ctx context.Context) ([]string, error) {
	var ips []string
	if err := r.getDB(ctx).Model(&models.PeerSessionModel{}).
		Where("status IN ? AND assigned_ip <> ''", openStatuses).
		Pluck("assigned_ip", &ips).Error; err != nil {
		return nil, fmt.Errorf("failed to list assigned IPs: %w", err)
	}
	return ips, nil
}

// CountActive counts open sessions
func (r *SessionRepositoryImpl) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.getDB(ctx).Model(&models.PeerSessionModel{}).
		Where("status IN ?", openStatuses).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// Stats aggregates the transparency totals over the session table.
func (r *SessionRepositoryImpl) Stats(ctx context.Context) (*session.NetworkStats, error) {
	stats := &session.NetworkStats{}

	if err := r.getDB(ctx).Model(&models.PeerSessionModel{}).
		Where("status IN ?", openStatuses).
		Count(&stats.ActiveSessions).Error; err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}

	if err := r.getDB(ctx).Model(&models.PeerSessionModel{}).
		Where("status = ?", session.StatusClosed.String()).
		Count(&stats.SessionsClosed).Error; err != nil {
		return nil, fmt.Errorf("failed to count closed sessions: %w", err)
	}

	type byteRow struct {
		Total uint64
	}
	var bytes24h byteRow
	dayAgo := biztime.NowUTC().Add(-24 * time.Hour)
	if err := r.getDB(ctx).Model(&models.PeerSessionModel{}).
		Select("COALESCE(SUM(bytes_transferred), 0) AS total").
		Where("updated_at >= ?", dayAgo).
		Scan(&bytes24h).Error; err != nil {
		return nil, fmt.Errorf("failed to sum relayed bytes: %w", err)
	}
	stats.BytesRelayed24h = bytes24h.Total

	return stats, nil
}
