package models

import "time"

// TradeRecord is the canonical, normalized form of one trade. Every ingestion
// path (CSV upload, broker HTML report, broker API sync) converges to this
// shape before any analysis runs.
//
// ProfitLoss sign is authoritative for win/loss classification; a zero value
// counts as neither. StopLoss and AccountBalanceBefore are pointers because
// some sources simply do not carry them, and the analysis stages must be able
// to tell "absent" from "zero". A zero EntryTime means the source had no
// time information at all.
type TradeRecord struct {
	TradeID              string
	Symbol               string
	TradeType            string
	LotSize              float64
	ProfitLoss           float64
	EntryTime            time.Time
	ExitTime             time.Time
	EntryPrice           float64
	ExitPrice            float64
	StopLoss             *float64
	AccountBalanceBefore *float64
}
