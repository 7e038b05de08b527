package mappers

import (
	"fmt"

	"github.com/worldvpn/broker/internal/domain/session"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
)

// PeerSessionMapper handles the conversion between domain entities and persistence models
type PeerSessionMapper interface {
	ToEntity(model *models.PeerSessionModel) (*session.Session, error)
	ToModel(entity *session.Session) (*models.PeerSessionModel, error)
	ToEntities(models []*models.PeerSessionModel) ([]*session.Session, error)
}

// PeerSessionMapperImpl is the concrete implementation of PeerSessionMapper
type PeerSessionMapperImpl struct{}

// NewPeerSessionMapper creates a new session mapper
func NewPeerSessionMapper() PeerSessionMapper {
	return &PeerSessionMapperImpl{}
}

// ToEntity converts a persistence model to a domain entity
func (m *PeerSessionMapperImpl) ToEntity(model *models.PeerSessionModel) (*session.Session, error) {
	if model == nil {
		return nil, nil
	}

	status := session.Status(model.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid session status: %s", model.Status)
	}

	trafficClass := session.TrafficClass(model.TrafficClass)
	if !trafficClass.IsValid() {
		return nil, fmt.Errorf("invalid traffic class: %s", model.TrafficClass)
	}

	var closeReason *session.CloseReason
	if model.CloseReason != nil {
		r := session.CloseReason(*model.CloseReason)
		closeReason = &r
	}

	entity, err := session.ReconstructSession(
		model.ID,
		model.SID,
		model.NodeID,
		model.NodeOwnerID,
		model.UserID,
		model.ClientCountry,
		model.ClientIdentityHash,
		trafficClass,
		model.Protocol,
		model.AssignedIP,
		model.ServerEndpoint,
		model.BytesTransferred,
		model.CreditsSpent,
		model.CreditsEarned,
		status,
		closeReason,
		model.Settled,
		model.StartedAt,
		model.LastReportAt,
		model.EndedAt,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct session entity: %w", err)
	}

	return entity, nil
}

// ToModel converts a domain entity to a persistence model
func (m *PeerSessionMapperImpl) ToModel(entity *session.Session) (*models.PeerSessionModel, error) {
	if entity == nil {
		return nil, nil
	}

	var closeReason *string
	if entity.CloseReason() != nil {
		r := entity.CloseReason().String()
		closeReason = &r
	}

	return &models.PeerSessionModel{
		ID:                 entity.ID(),
		SID:                entity.SID(),
		NodeID:             entity.NodeID(),
		NodeOwnerID:        entity.NodeOwnerID(),
		UserID:             entity.UserID(),
		ClientCountry:      entity.ClientCountry(),
		ClientIdentityHash: entity.ClientIdentityHash(),
		TrafficClass:       entity.TrafficClass().String(),
		Protocol:           entity.Protocol(),
		AssignedIP:         entity.AssignedIP(),
		ServerEndpoint:     entity.ServerEndpoint(),
		BytesTransferred:   entity.BytesTransferred(),
		CreditsSpent:       entity.CreditsSpent(),
		CreditsEarned:      entity.CreditsEarned(),
		Status:             entity.Status().String(),
		CloseReason:        closeReason,
		Settled:            entity.Settled(),
		StartedAt:          entity.StartedAt(),
		LastReportAt:       entity.LastReportAt(),
		EndedAt:            entity.EndedAt(),
		Version:            entity.Version(),
		CreatedAt:          entity.CreatedAt(),
		UpdatedAt:          entity.UpdatedAt(),
	}, nil
}

// ToEntities converts multiple persistence models to domain entities
func (m *PeerSessionMapperImpl) ToEntities(sessionModels []*models.PeerSessionModel) ([]*session.Session, error) {
	entities := make([]*session.Session, 0, len(sessionModels))
	for _, model := range sessionModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, fmt.Errorf("failed to map model ID %d: %w", model.ID, err)
		}
		if entity != nil {
			entities = append(entities, entity)
		}
	}
	return entities, nil
}
