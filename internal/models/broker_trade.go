package models

import (
	"time"

	"gorm.io/gorm"
)

// BrokerTrade is a trade fetched from the broker API. The composite unique
// index on (connection_id, external_trade_id) is the dedup key for the
// reconciler's upsert: re-syncing the same external id updates the existing
// row instead of creating a new one.
type BrokerTrade struct {
	gorm.Model
	ConnectionID    uint   `gorm:"uniqueIndex:idx_conn_external;not null"`
	ExternalTradeID string `gorm:"uniqueIndex:idx_conn_external;not null"`
	TransactionID   string
	ContractID      string
	Symbol          string
	ContractType    string
	Currency        string
	BuyPrice        float64
	SellPrice       float64
	Stake           float64
	Payout          float64
	Profit          float64
	PurchaseTime    time.Time
	ExpiryTime      *time.Time
	SellTime        *time.Time
	Status          string
	ExitSpot        float64
	AnalysisID      *uint
}
