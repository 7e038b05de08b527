package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/worldvpn/broker/internal/shared/constants"
)

// NodeModel is the persistence model for relay nodes. CurrentConnections is
// the broker-owned reservation counter and is only mutated through the
// conditional reserve/release updates, never by plain saves.
type NodeModel struct {
	ID                  uint    `gorm:"primarykey"`
	SID                 string  `gorm:"uniqueIndex;not null;size:32"`
	UserID              *uint   `gorm:"index"`
	Name                string  `gorm:"not null;size:100"`
	PubIdentityHash     string  `gorm:"uniqueIndex:idx_identity_hash;not null;size:64"`
	CountryCode         string  `gorm:"not null;size:2;index:idx_online_country,priority:2"`
	City                string  `gorm:"size:100"`
	BandwidthMbps       uint    `gorm:"not null;default:0"`
	MaxConnections      uint    `gorm:"not null"`
	CurrentConnections  uint    `gorm:"not null;default:0"`
	ReportedConnections uint    `gorm:"not null;default:0"`
	Protocols           datatypes.JSON
	AllowedCountries    datatypes.JSON
	BlockedCountries    datatypes.JSON
	AllowStreaming      bool    `gorm:"not null;default:true"`
	AllowTorrents       bool    `gorm:"not null;default:false"`
	DailyByteCap        uint64  `gorm:"not null;default:0"`
	TrafficUsedToday    uint64  `gorm:"not null;default:0"`
	UptimePercent       float64 `gorm:"not null;default:0"`
	AvgLatencyMs        float64 `gorm:"not null;default:0"`
	Reputation          float64 `gorm:"not null;default:50"`
	Online              bool    `gorm:"not null;default:false;index:idx_online_country,priority:1"`
	LastHeartbeatAt     *time.Time `gorm:"index:idx_nodes_last_heartbeat_at"`
	GroupTag            string     `gorm:"not null;default:COMMUNITY;size:20;index:idx_group_tag"`
	APITokenHash        *string    `gorm:"uniqueIndex:idx_token_hash;size:64"`
	Disabled            bool       `gorm:"not null;default:false"`
	Version             int        `gorm:"not null;default:1"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName specifies the table name for GORM
func (NodeModel) TableName() string {
	return constants.TableNodes
}

// BeforeCreate hook for GORM
func (n *NodeModel) BeforeCreate(tx *gorm.DB) error {
	if n.GroupTag == "" {
		n.GroupTag = "COMMUNITY"
	}
	if n.Version == 0 {
		n.Version = 1
	}
	return nil
}

// BeforeUpdate implements optimistic locking
func (n *NodeModel) BeforeUpdate(tx *gorm.DB) error {
	tx.Statement.SetColumn("version", n.Version+1)
	return nil
}
