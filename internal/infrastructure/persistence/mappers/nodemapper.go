package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
)

// NodeMapper handles the conversion between domain entities and persistence models
type NodeMapper interface {
	ToEntity(model *models.NodeModel) (*node.Node, error)
	ToModel(entity *node.Node) (*models.NodeModel, error)
	ToEntities(models []*models.NodeModel) ([]*node.Node, error)
}

// NodeMapperImpl is the concrete implementation of NodeMapper
type NodeMapperImpl struct{}

// NewNodeMapper creates a new node mapper
func NewNodeMapper() NodeMapper {
	return &NodeMapperImpl{}
}

// ToEntity converts a persistence model to a domain entity
func (m *NodeMapperImpl) ToEntity(model *models.NodeModel) (*node.Node, error) {
	if model == nil {
		return nil, nil
	}

	var protocolTags []string
	if len(model.Protocols) > 0 {
		if err := json.Unmarshal(model.Protocols, &protocolTags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal protocols: %w", err)
		}
	}
	protocols, err := node.ParseProtocolSet(protocolTags)
	if err != nil {
		return nil, fmt.Errorf("invalid protocol set on node %d: %w", model.ID, err)
	}

	allowed, err := countriesFromJSON(model.AllowedCountries)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal allowed_countries: %w", err)
	}
	blocked, err := countriesFromJSON(model.BlockedCountries)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal blocked_countries: %w", err)
	}
	policy := node.NewTrafficPolicy(allowed, blocked, model.AllowStreaming, model.AllowTorrents, model.DailyByteCap)

	group, err := node.ParseGroup(model.GroupTag)
	if err != nil {
		return nil, fmt.Errorf("invalid group on node %d: %w", model.ID, err)
	}

	tokenHash := ""
	if model.APITokenHash != nil {
		tokenHash = *model.APITokenHash
	}

	entity, err := node.ReconstructNode(
		model.ID,
		model.SID,
		model.UserID,
		model.Name,
		model.PubIdentityHash,
		model.CountryCode,
		model.City,
		model.BandwidthMbps,
		model.MaxConnections,
		model.CurrentConnections,
		model.ReportedConnections,
		protocols,
		policy,
		model.TrafficUsedToday,
		model.UptimePercent,
		model.AvgLatencyMs,
		model.Reputation,
		model.Online,
		model.LastHeartbeatAt,
		group,
		tokenHash,
		model.Disabled,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct node entity: %w", err)
	}

	return entity, nil
}

// ToModel converts a domain entity to a persistence model
func (m *NodeMapperImpl) ToModel(entity *node.Node) (*models.NodeModel, error) {
	if entity == nil {
		return nil, nil
	}

	protocolsJSON, err := json.Marshal(entity.Protocols().Strings())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal protocols: %w", err)
	}

	allowedJSON, err := countriesToJSON(entity.Policy().AllowedCountries())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal allowed_countries: %w", err)
	}
	blockedJSON, err := countriesToJSON(entity.Policy().BlockedCountries())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal blocked_countries: %w", err)
	}

	var tokenHash *string
	if h := entity.APITokenHash(); h != "" {
		tokenHash = &h
	}

	return &models.NodeModel{
		ID:                  entity.ID(),
		SID:                 entity.SID(),
		UserID:              entity.OwnerID(),
		Name:                entity.Name(),
		PubIdentityHash:     entity.PubIdentityHash(),
		CountryCode:         entity.CountryCode(),
		City:                entity.City(),
		BandwidthMbps:       entity.BandwidthMbps(),
		MaxConnections:      entity.MaxConnections(),
		CurrentConnections:  entity.CurrentConnections(),
		ReportedConnections: entity.ReportedConnections(),
		Protocols:           protocolsJSON,
		AllowedCountries:    allowedJSON,
		BlockedCountries:    blockedJSON,
		AllowStreaming:      entity.Policy().AllowStreaming(),
		AllowTorrents:       entity.Policy().AllowTorrents(),
		DailyByteCap:        entity.Policy().DailyByteCap(),
		TrafficUsedToday:    entity.TrafficUsedToday(),
		UptimePercent:       entity.UptimePercent(),
		AvgLatencyMs:        entity.AvgLatencyMs(),
		Reputation:          entity.Reputation(),
		Online:              entity.Online(),
		LastHeartbeatAt:     entity.LastHeartbeatAt(),
		GroupTag:            entity.GroupTag().String(),
		APITokenHash:        tokenHash,
		Disabled:            entity.Disabled(),
		Version:             entity.Version(),
		CreatedAt:           entity.CreatedAt(),
		UpdatedAt:           entity.UpdatedAt(),
	}, nil
}

// ToEntities converts multiple persistence models to domain entities
func (m *NodeMapperImpl) ToEntities(nodeModels []*models.NodeModel) ([]*node.Node, error) {
	entities := make([]*node.Node, 0, len(nodeModels))
	for _, model := range nodeModels {
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

func countriesFromJSON(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

func countriesToJSON(codes []string) (datatypes.JSON, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(codes)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
