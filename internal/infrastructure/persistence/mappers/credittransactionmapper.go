package mappers

import (
	"fmt"

	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
)

// CreditTransactionMapper handles the conversion between domain entities and persistence models
type CreditTransactionMapper interface {
	ToEntity(model *models.CreditTransactionModel) (*ledger.Transaction, error)
	ToModel(entity *ledger.Transaction) (*models.CreditTransactionModel, error)
	ToEntities(models []*models.CreditTransactionModel) ([]*ledger.Transaction, error)
}

// CreditTransactionMapperImpl is the concrete implementation of CreditTransactionMapper
type CreditTransactionMapperImpl struct{}

// NewCreditTransactionMapper creates a new ledger entry mapper
func NewCreditTransactionMapper() CreditTransactionMapper {
	return &CreditTransactionMapperImpl{}
}

// ToEntity converts a persistence model to a domain entity
func (m *CreditTransactionMapperImpl) ToEntity(model *models.CreditTransactionModel) (*ledger.Transaction, error) {
	if model == nil {
		return nil, nil
	}

	txType := ledger.TransactionType(model.Type)
	if !txType.IsValid() {
		return nil, fmt.Errorf("invalid transaction type: %s", model.Type)
	}

	entity, err := ledger.ReconstructTransaction(
		model.ID,
		model.SID,
		model.UserID,
		model.SessionID,
		model.Amount,
		txType,
		model.Description,
		model.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct transaction entity: %w", err)
	}

	return entity, nil
}

// ToModel converts a domain entity to a persistence model
func (m *CreditTransactionMapperImpl) ToModel(entity *ledger.Transaction) (*models.CreditTransactionModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.CreditTransactionModel{
		ID:          entity.ID(),
		SID:         entity.SID(),
		UserID:      entity.UserID(),
		SessionID:   entity.SessionID(),
		Amount:      entity.Amount(),
		Type:        entity.Type().String(),
		Description: entity.Description(),
		CreatedAt:   entity.CreatedAt(),
	}, nil
}

// ToEntities converts multiple persistence models to domain entities
func (m *CreditTransactionMapperImpl) ToEntities(txModels []*models.CreditTransactionModel) ([]*ledger.Transaction, error) {
	entities := make([]*ledger.Transaction, 0, len(txModels))
	for _, model := range txModels {
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
