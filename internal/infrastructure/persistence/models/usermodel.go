package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/worldvpn/broker/internal/shared/constants"
)

// UserModel is the persistence model for accounts. The credits column is the
// cached ledger balance; it is only mutated inside ledger transactions.
type UserModel struct {
	ID           uint   `gorm:"primarykey"`
	SID          string `gorm:"uniqueIndex;not null;size:32"`
	Username     string `gorm:"uniqueIndex;not null;size:32"`
	PasswordHash string `gorm:"not null;size:255"`
	Role         string `gorm:"not null;default:user;size:20"`
	Credits      int64  `gorm:"not null;default:0"`
	RiskScore    int    `gorm:"not null;default:0"`
	Version      int    `gorm:"not null;default:1"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for GORM
func (UserModel) TableName() string {
	return constants.TableUsers
}

// BeforeCreate hook for GORM
func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = "user"
	}
	if u.Version == 0 {
		u.Version = 1
	}
	return nil
}

// BeforeUpdate implements optimistic locking
func (u *UserModel) BeforeUpdate(tx *gorm.DB) error {
	tx.Statement.SetColumn("version", u.Version+1)
	return nil
}
