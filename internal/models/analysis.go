package models

import (
	"time"

	"gorm.io/gorm"
)

// Analysis is a persisted analysis run: the score headline plus the full
// metrics/findings/score payloads serialized as JSON. The core pipeline
// produces the in-memory values; this row is the durable form handed to the
// presentation layer.
type Analysis struct {
	gorm.Model
	Source       string // "upload" or "sync"
	Filename     string
	TradeCount   int
	Score        float64
	Grade        string
	MetricsJSON  string `gorm:"type:text"`
	FindingsJSON string `gorm:"type:text"`
	ScoreJSON    string `gorm:"type:text"`
	CompletedAt  *time.Time
}
