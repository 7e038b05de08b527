package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/worldvpn/broker/internal/shared/constants"
)

// PeerSessionModel is the persistence model for relay sessions. Status drives
// the exactly-once close flip: the repository moves a session to CLOSING with
// a conditional update on the open states only.
type PeerSessionModel struct {
	ID                 uint    `gorm:"primarykey"`
	SID                string  `gorm:"uniqueIndex;not null;size:32"`
	NodeID             uint    `gorm:"not null;default:0;index"`
	NodeOwnerID        *uint
	UserID             uint    `gorm:"not null;index"`
	ClientCountry      string  `gorm:"size:2"`
	ClientIdentityHash string  `gorm:"size:64"`
	TrafficClass       string  `gorm:"not null;default:STANDARD;size:20"`
	Protocol           string  `gorm:"not null;size:20"`
	AssignedIP         string  `gorm:"size:45"`
	ServerEndpoint     string  `gorm:"size:255"`
	BytesTransferred   uint64  `gorm:"not null;default:0"`
	CreditsSpent       int64   `gorm:"not null;default:0"`
	CreditsEarned      int64   `gorm:"not null;default:0"`
	Status             string  `gorm:"not null;default:REQUESTED;size:20;index:idx_session_status"`
	CloseReason        *string `gorm:"size:30"`
	Settled            bool    `gorm:"not null;default:false"`
	StartedAt          time.Time  `gorm:"not null;index:idx_session_started_at"`
	LastReportAt       *time.Time
	EndedAt            *time.Time
	Version            int `gorm:"not null;default:1"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName specifies the table name for GORM
func (PeerSessionModel) TableName() string {
	return constants.TablePeerSessions
}

// BeforeCreate hook for GORM
func (s *PeerSessionModel) BeforeCreate(tx *gorm.DB) error {
	if s.Status == "" {
		s.Status = "REQUESTED"
	}
	if s.TrafficClass == "" {
		s.TrafficClass = "STANDARD"
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}

// BeforeUpdate implements optimistic locking
func (s *PeerSessionModel) BeforeUpdate(tx *gorm.DB) error {
	tx.Statement.SetColumn("version", s.Version+1)
	return nil
}
