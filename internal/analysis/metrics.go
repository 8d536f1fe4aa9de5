// Package analysis contains the synchronous scoring pipeline: metrics
// computation, rule-based risk detection and weighted score aggregation.
// Every stage is a pure function over an immutable record slice, so a full
// re-run over the same input produces identical output.
package analysis

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"trade-risk-analyzer-go/internal/models"
)

// revengeWindow is the maximum gap after a losing trade for the next entry
// to count as revenge trading.
const revengeWindow = 30 * time.Minute

// standardLot converts lot size to notional units for position sizing.
const standardLot = 100000.0

// Snapshot is the flat numeric metrics aggregate over one trade sequence.
// It is recomputed fully on every run, never partially updated. The Has*
// flags record which optional input fields were available; rules depending
// on an absent group are skipped rather than fed defaults.
type Snapshot struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`

	TotalProfit float64 `json:"total_profit"`
	TotalLoss   float64 `json:"total_loss"` // magnitude
	NetProfit   float64 `json:"net_profit"`
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"` // magnitude

	// ProfitFactor is +Inf when there are profits but no losses, and 0 when
	// there are neither.
	ProfitFactor float64 `json:"profit_factor"`

	HasPositionSizing  bool    `json:"has_position_sizing"`
	AvgPositionSizePct float64 `json:"avg_position_size_pct"`
	MaxPositionSizePct float64 `json:"max_position_size_pct"`

	HasStopLoss bool    `json:"has_stop_loss"`
	SLUsageRate float64 `json:"sl_usage_rate"`

	RiskRewardRatio float64 `json:"risk_reward_ratio"`

	HasBalance     bool    `json:"has_balance"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	HasTimes              bool    `json:"has_times"`
	AvgTradeDurationHours float64 `json:"avg_trade_duration_hours"`
	RevengeTradesCount    int     `json:"revenge_trades_count"`
	RevengeTradingPct     float64 `json:"revenge_trading_pct"`
	MostActiveHour        int     `json:"most_active_hour"`
}

// MarshalJSON encodes the snapshot for persistence. ProfitFactor can carry
// the +Inf sentinel (profits with no losses), which JSON has no number for;
// it is encoded as null so a loss-free history still round-trips the rest of
// the snapshot.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	out := struct {
		alias
		ProfitFactor any `json:"profit_factor"`
	}{alias: alias(s), ProfitFactor: s.ProfitFactor}
	if math.IsInf(s.ProfitFactor, 0) {
		out.ProfitFactor = nil
	}
	return json.Marshal(out)
}

// ComputeMetrics builds a Snapshot from a trade sequence.
func ComputeMetrics(records []models.TradeRecord) Snapshot {
	var snap Snapshot
	snap.TotalTrades = len(records)
	if snap.TotalTrades == 0 {
		return snap
	}

	for _, r := range records {
		switch {
		case r.ProfitLoss > 0:
			snap.WinningTrades++
			snap.TotalProfit += r.ProfitLoss
		case r.ProfitLoss < 0:
			snap.LosingTrades++
			snap.TotalLoss += -r.ProfitLoss
		}
		snap.NetProfit += r.ProfitLoss
	}

	snap.WinRate = float64(snap.WinningTrades) / float64(snap.TotalTrades) * 100
	if snap.WinningTrades > 0 {
		snap.AvgWin = snap.TotalProfit / float64(snap.WinningTrades)
	}
	if snap.LosingTrades > 0 {
		snap.AvgLoss = snap.TotalLoss / float64(snap.LosingTrades)
	}

	switch {
	case snap.TotalLoss != 0:
		snap.ProfitFactor = snap.TotalProfit / snap.TotalLoss
	case snap.TotalProfit > 0:
		snap.ProfitFactor = math.Inf(1)
	default:
		snap.ProfitFactor = 0
	}

	if snap.WinningTrades > 0 && snap.LosingTrades > 0 && snap.AvgLoss != 0 {
		snap.RiskRewardRatio = snap.AvgWin / snap.AvgLoss
	}

	computePositionSizing(records, &snap)
	computeStopLossUsage(records, &snap)
	computeDrawdown(records, &snap)
	computePatterns(records, &snap)

	return snap
}

func computePositionSizing(records []models.TradeRecord, snap *Snapshot) {
	var sum float64
	count := 0
	for _, r := range records {
		if r.AccountBalanceBefore == nil || *r.AccountBalanceBefore <= 0 {
			continue
		}
		pct := r.LotSize * standardLot / *r.AccountBalanceBefore * 100
		sum += pct
		if pct > snap.MaxPositionSizePct {
			snap.MaxPositionSizePct = pct
		}
		count++
	}
	if count > 0 {
		snap.HasPositionSizing = true
		snap.AvgPositionSizePct = sum / float64(count)
	}
}

func computeStopLossUsage(records []models.TradeRecord, snap *Snapshot) {
	present := false
	missing := 0
	for _, r := range records {
		if r.StopLoss != nil {
			present = true
		}
		// Zero conflates "no stop" with a genuine zero stop level; that is
		// the documented interpretation.
		if r.StopLoss == nil || *r.StopLoss == 0 {
			missing++
		}
	}
	if present {
		snap.HasStopLoss = true
		snap.SLUsageRate = (1 - float64(missing)/float64(len(records))) * 100
	}
}

// computeDrawdown walks balances in record order, not time order. The
// revenge detector below sorts by time; this one deliberately does not, to
// keep results identical to the established calculation for unsorted input.
func computeDrawdown(records []models.TradeRecord, snap *Snapshot) {
	peak := 0.0
	seen := false
	for _, r := range records {
		if r.AccountBalanceBefore == nil {
			continue
		}
		balance := *r.AccountBalanceBefore
		if !seen || balance > peak {
			peak = balance
			seen = true
		}
		if peak > 0 {
			dd := (peak - balance) / peak * 100
			if dd > snap.MaxDrawdownPct {
				snap.MaxDrawdownPct = dd
			}
		}
	}
	snap.HasBalance = seen
}

func computePatterns(records []models.TradeRecord, snap *Snapshot) {
	var timed []models.TradeRecord
	for _, r := range records {
		if !r.EntryTime.IsZero() {
			timed = append(timed, r)
		}
	}
	if len(timed) == 0 {
		return
	}
	snap.HasTimes = true

	var totalHours float64
	for _, r := range timed {
		exit := r.ExitTime
		if exit.IsZero() {
			exit = r.EntryTime
		}
		totalHours += exit.Sub(r.EntryTime).Hours()
	}
	snap.AvgTradeDurationHours = totalHours / float64(len(timed))

	sorted := make([]models.TradeRecord, len(timed))
	copy(sorted, timed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EntryTime.Before(sorted[j].EntryTime)
	})

	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].EntryTime.Sub(sorted[i-1].EntryTime)
		if sorted[i-1].ProfitLoss < 0 && gap < revengeWindow {
			snap.RevengeTradesCount++
		}
	}
	snap.RevengeTradingPct = float64(snap.RevengeTradesCount) / float64(snap.TotalTrades) * 100

	hourCounts := make(map[int]int)
	for _, r := range sorted {
		hourCounts[r.EntryTime.Hour()]++
	}
	best, bestCount := 0, -1
	for hour := 0; hour < 24; hour++ {
		if c := hourCounts[hour]; c > bestCount {
			best, bestCount = hour, c
		}
	}
	snap.MostActiveHour = best
}
