package analysis

import (
	"fmt"
	"math"

	"trade-risk-analyzer-go/internal/models"
)

// Risk kinds.
const (
	RiskOverLeverage   = "over_leverage"
	RiskNoStopLoss     = "no_stop_loss"
	RiskHighDrawdown   = "high_drawdown"
	RiskRevengeTrading = "revenge_trading"
	RiskPoorRRRatio    = "poor_rr_ratio"
	RiskLowWinRate     = "low_win_rate"
	RiskConcentration  = "concentration_risk"
	RiskOvertrading    = "overtrading"
)

// Maximum-badness references for severity interpolation.
const (
	maxRefPositionSizePct = 5.0
	maxRefDrawdownPct     = 50.0
	maxRefRevengePct      = 30.0

	concentrationTriggerPct = 50.0
	concentrationMaxPct     = 80.0

	overtradingMaxDurationHours = 1.0
	overtradingMinTrades        = 20
	overtradingTradesPerDay     = 5.0
	overtradingWindowDays       = 30.0 // fixed assumption for trades/day
)

// Thresholds configures the risk rules. It is a plain value passed into
// DetectRisks so concurrent analyses with different settings never share
// state.
type Thresholds struct {
	MaxPositionSizePct   float64
	MinWinRate           float64
	MaxDrawdownPct       float64
	MinRRRatio           float64
	MaxRevengeTradingPct float64
	MinSLUsageRate       float64
}

// DefaultThresholds returns the standard rule configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxPositionSizePct:   2.0,
		MinWinRate:           40.0,
		MaxDrawdownPct:       20.0,
		MinRRRatio:           1.0,
		MaxRevengeTradingPct: 10.0,
		MinSLUsageRate:       80.0,
	}
}

// Finding is one triggered risk. Untriggered rules produce nothing; set
// membership is what the scorer consumes.
type Finding struct {
	Kind      string             `json:"kind"`
	Severity  float64            `json:"severity"` // 0-100
	Threshold float64            `json:"threshold"`
	Values    map[string]float64 `json:"values"`
	Message   string             `json:"message"`
}

// DetectRisks evaluates every rule against the snapshot (and, for
// concentration, the raw records). Rules are independent and
// order-insensitive; a rule whose input group is absent is skipped, not
// emitted at zero severity.
func DetectRisks(snap Snapshot, records []models.TradeRecord, th Thresholds) []Finding {
	var findings []Finding
	add := func(f *Finding) {
		if f != nil {
			findings = append(findings, *f)
		}
	}

	add(detectOverLeverage(snap, th))
	add(detectNoStopLoss(snap, th))
	add(detectHighDrawdown(snap, th))
	add(detectRevengeTrading(snap, th))
	add(detectPoorRRRatio(snap, th))
	add(detectLowWinRate(snap, th))
	add(detectConcentration(records))
	add(detectOvertrading(snap))

	return findings
}

// severityAbove interpolates severity for higher-is-worse metrics between
// the threshold (0) and a fixed maximum-badness reference (100).
func severityAbove(value, threshold, maxRef float64) float64 {
	if maxRef <= threshold {
		if value > threshold {
			return 100
		}
		return 0
	}
	return round2(clamp((value-threshold)/(maxRef-threshold)*100, 0, 100))
}

// severityBelow is the symmetric form for lower-is-worse metrics: how far
// below the threshold the value sits, relative to the threshold itself.
func severityBelow(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	return round2(clamp((threshold-value)/threshold*100, 0, 100))
}

func detectOverLeverage(snap Snapshot, th Thresholds) *Finding {
	if !snap.HasPositionSizing || snap.AvgPositionSizePct <= th.MaxPositionSizePct {
		return nil
	}
	return &Finding{
		Kind:      RiskOverLeverage,
		Severity:  severityAbove(snap.AvgPositionSizePct, th.MaxPositionSizePct, maxRefPositionSizePct),
		Threshold: th.MaxPositionSizePct,
		Values: map[string]float64{
			"avg_position_size_pct": round2(snap.AvgPositionSizePct),
			"max_position_size_pct": round2(snap.MaxPositionSizePct),
		},
		Message: fmt.Sprintf("Average position size (%.1f%%) exceeds recommended limit (%g%% of account)",
			snap.AvgPositionSizePct, th.MaxPositionSizePct),
	}
}

func detectNoStopLoss(snap Snapshot, th Thresholds) *Finding {
	if !snap.HasStopLoss || snap.SLUsageRate >= th.MinSLUsageRate {
		return nil
	}
	missingPct := 100 - snap.SLUsageRate
	tradesWithoutSL := math.Round(missingPct * float64(snap.TotalTrades) / 100)
	return &Finding{
		Kind:      RiskNoStopLoss,
		Severity:  severityBelow(snap.SLUsageRate, th.MinSLUsageRate),
		Threshold: th.MinSLUsageRate,
		Values: map[string]float64{
			"sl_usage_rate":     round2(snap.SLUsageRate),
			"trades_without_sl": tradesWithoutSL,
		},
		Message: fmt.Sprintf("%.1f%% of trades executed without stop-loss orders", missingPct),
	}
}

func detectHighDrawdown(snap Snapshot, th Thresholds) *Finding {
	if !snap.HasBalance || snap.MaxDrawdownPct <= th.MaxDrawdownPct {
		return nil
	}
	return &Finding{
		Kind:      RiskHighDrawdown,
		Severity:  severityAbove(snap.MaxDrawdownPct, th.MaxDrawdownPct, maxRefDrawdownPct),
		Threshold: th.MaxDrawdownPct,
		Values: map[string]float64{
			"max_drawdown_pct": round2(snap.MaxDrawdownPct),
		},
		Message: fmt.Sprintf("Maximum drawdown (%.1f%%) exceeds safe limit (%g%%)",
			snap.MaxDrawdownPct, th.MaxDrawdownPct),
	}
}

func detectRevengeTrading(snap Snapshot, th Thresholds) *Finding {
	if !snap.HasTimes || snap.RevengeTradingPct <= th.MaxRevengeTradingPct {
		return nil
	}
	return &Finding{
		Kind:      RiskRevengeTrading,
		Severity:  severityAbove(snap.RevengeTradingPct, th.MaxRevengeTradingPct, maxRefRevengePct),
		Threshold: th.MaxRevengeTradingPct,
		Values: map[string]float64{
			"revenge_trading_pct":  round2(snap.RevengeTradingPct),
			"revenge_trades_count": float64(snap.RevengeTradesCount),
		},
		Message: fmt.Sprintf("Revenge trading detected: %.1f%% of trades entered shortly after a loss",
			snap.RevengeTradingPct),
	}
}

func detectPoorRRRatio(snap Snapshot, th Thresholds) *Finding {
	if snap.TotalTrades == 0 || snap.RiskRewardRatio >= th.MinRRRatio {
		return nil
	}
	return &Finding{
		Kind:      RiskPoorRRRatio,
		Severity:  severityBelow(snap.RiskRewardRatio, th.MinRRRatio),
		Threshold: th.MinRRRatio,
		Values: map[string]float64{
			"risk_reward_ratio": round2(snap.RiskRewardRatio),
		},
		Message: fmt.Sprintf("Risk-reward ratio (%.2f) below recommended minimum (%g)",
			snap.RiskRewardRatio, th.MinRRRatio),
	}
}

func detectLowWinRate(snap Snapshot, th Thresholds) *Finding {
	if snap.TotalTrades == 0 || snap.WinRate >= th.MinWinRate {
		return nil
	}
	return &Finding{
		Kind:      RiskLowWinRate,
		Severity:  severityBelow(snap.WinRate, th.MinWinRate),
		Threshold: th.MinWinRate,
		Values: map[string]float64{
			"win_rate": round2(snap.WinRate),
		},
		Message: fmt.Sprintf("Win rate (%.1f%%) below acceptable level (%g%%)",
			snap.WinRate, th.MinWinRate),
	}
}

func detectConcentration(records []models.TradeRecord) *Finding {
	if len(records) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, r := range records {
		if r.Symbol != "" {
			counts[r.Symbol]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	topSymbol := ""
	topCount := 0
	for symbol, c := range counts {
		if c > topCount || (c == topCount && symbol < topSymbol) {
			topSymbol, topCount = symbol, c
		}
	}

	topPct := float64(topCount) / float64(len(records)) * 100
	if topPct <= concentrationTriggerPct {
		return nil
	}
	return &Finding{
		Kind:      RiskConcentration,
		Severity:  severityAbove(topPct, concentrationTriggerPct, concentrationMaxPct),
		Threshold: concentrationTriggerPct,
		Values: map[string]float64{
			"concentration_pct": round2(topPct),
			"unique_symbols":    float64(len(counts)),
		},
		Message: fmt.Sprintf("High concentration: %.1f%% of trades in %s", topPct, topSymbol),
	}
}

func detectOvertrading(snap Snapshot) *Finding {
	if !snap.HasTimes {
		return nil
	}
	if snap.AvgTradeDurationHours >= overtradingMaxDurationHours || snap.TotalTrades <= overtradingMinTrades {
		return nil
	}
	tradesPerDay := float64(snap.TotalTrades) / overtradingWindowDays
	if tradesPerDay <= overtradingTradesPerDay {
		return nil
	}
	return &Finding{
		Kind:      RiskOvertrading,
		Severity:  math.Min(100, round2(tradesPerDay*10)),
		Threshold: overtradingTradesPerDay,
		Values: map[string]float64{
			"avg_trade_duration_hours": round2(snap.AvgTradeDurationHours),
			"trades_per_day":           round2(tradesPerDay),
			"total_trades":             float64(snap.TotalTrades),
		},
		Message: fmt.Sprintf("Potential overtrading: %.1f trades per day with average duration %.1f hours",
			tradesPerDay, snap.AvgTradeDurationHours),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
