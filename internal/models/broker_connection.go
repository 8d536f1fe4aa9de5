package models

import (
	"time"

	"gorm.io/gorm"
)

// Connection status values.
const (
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusConnected    = "connected"
	ConnectionStatusError        = "error"
)

// BrokerConnection represents one linked broker account. Its sync state
// fields are mutated only by the reconciler.
type BrokerConnection struct {
	gorm.Model
	Name              string
	AppID             string `gorm:"uniqueIndex:idx_app_account"`
	AccountID         string `gorm:"uniqueIndex:idx_app_account"`
	APITokenEncrypted string
	Enabled           bool   `gorm:"default:true"`
	ConnectionStatus  string `gorm:"default:disconnected"`

	LastSyncAt         *time.Time
	LastSuccessfulSync *time.Time
	LastSyncStatus     string
	LastError          string
	ErrorCount         int
	TotalSyncs         int
	TotalTradesSynced  int
}
