package models

import (
	"time"

	"github.com/worldvpn/broker/internal/shared/constants"
)

// CreditTransactionModel is the persistence model for the append-only ledger.
// Rows are never updated or deleted. The unique (session_id, type) index is
// the database-level backstop for exactly-once settlement: a second SPENT or
// EARNED entry for the same session violates the constraint.
type CreditTransactionModel struct {
	ID          uint   `gorm:"primarykey"`
	SID         string `gorm:"uniqueIndex;not null;size:32"`
	UserID      uint   `gorm:"not null;index:idx_tx_user_created,priority:1"`
	SessionID   *uint  `gorm:"uniqueIndex:idx_tx_session_type,priority:1"`
	Amount      int64  `gorm:"not null"`
	Type        string `gorm:"not null;size:10;uniqueIndex:idx_tx_session_type,priority:2"`
	Description string `gorm:"size:255"`
	CreatedAt   time.Time `gorm:"index:idx_tx_user_created,priority:2"`
}

// TableName specifies the table name for GORM
func (CreditTransactionModel) TableName() string {
	return constants.TableCreditTransactions
}
