package migration

import (
	"github.com/worldvpn/broker/internal/infrastructure/persistence/models"
)

func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.UserModel{},
		&models.NodeModel{},
		&models.PeerSessionModel{},
		&models.CreditTransactionModel{},
	}
}
