// Package ingest normalizes raw trade exports into the canonical
// TradeRecord sequence consumed by the analysis pipeline. It understands
// header-named CSV uploads and unlabeled broker HTML reports; both paths
// produce records in source row order, which is not guaranteed to be
// time-sorted.
package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"trade-risk-analyzer-go/internal/models"
)

// Normalizer parses raw exports into canonical trade records.
type Normalizer struct {
	log *zap.Logger
	now func() time.Time
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log, now: time.Now}
}

// Parse dispatches on the filename extension. Unrecognized types are a
// FormatError; content-level failures come from the per-format parsers.
func (n *Normalizer) Parse(filename string, content []byte) ([]models.TradeRecord, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".csv"):
		return n.ParseCSV(bytes.NewReader(content))
	case strings.HasSuffix(strings.ToLower(filename), ".html"),
		strings.HasSuffix(strings.ToLower(filename), ".htm"):
		return n.ParseHTML(content)
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("unrecognized file type: %s", filename)}
	}
}

// SampleRecords returns a small canned trade set, useful for demoing the
// pipeline without an upload.
func SampleRecords() []models.TradeRecord {
	mk := func(id int, pl, lot, balance, sl float64, entry, exit string) models.TradeRecord {
		entryT, _ := time.Parse("2006-01-02 15:04:05", entry)
		exitT, _ := time.Parse("2006-01-02 15:04:05", exit)
		return models.TradeRecord{
			TradeID:              fmt.Sprintf("sample_%d", id),
			Symbol:               "EURUSD",
			TradeType:            "buy",
			LotSize:              lot,
			ProfitLoss:           pl,
			EntryTime:            entryT,
			ExitTime:             exitT,
			StopLoss:             &sl,
			AccountBalanceBefore: &balance,
		}
	}
	return []models.TradeRecord{
		mk(1, 50, 0.1, 10000, 1.1, "2024-01-01 10:00:00", "2024-01-01 11:00:00"),
		mk(2, -30, 0.2, 10050, 1.2, "2024-01-01 11:00:00", "2024-01-01 11:30:00"),
		mk(3, 75, 0.15, 10020, 1.15, "2024-01-01 12:00:00", "2024-01-01 13:00:00"),
		mk(4, -20, 0.1, 10095, 1.3, "2024-01-01 12:15:00", "2024-01-01 12:45:00"),
	}
}
