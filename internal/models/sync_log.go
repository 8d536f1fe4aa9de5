package models

import (
	"time"

	"gorm.io/gorm"
)

// Sync log status values.
const (
	SyncStatusStarted = "started"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// SyncLog records one reconciliation run for a connection.
type SyncLog struct {
	gorm.Model
	ConnectionID    uint `gorm:"not null;index"`
	SyncType        string
	Status          string
	StartedAt       time.Time
	CompletedAt     *time.Time
	DurationSeconds float64
	TradesFetched   int
	TradesNew       int
	TradesUpdated   int
	ErrorMessage    string
	AnalysisID      *uint
	Score           *float64
}
