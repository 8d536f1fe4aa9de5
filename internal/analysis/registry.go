package analysis

// RiskInfo documents one risk kind for the presentation layer. The registry
// is a static catalog; it does not reflect live rule state.
type RiskInfo struct {
	Kind             string  `json:"kind"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	DefaultThreshold float64 `json:"default_threshold"`
	Weight           float64 `json:"weight"`
}

// Registry returns the read-only risk catalog, heaviest weight first.
func Registry() []RiskInfo {
	return []RiskInfo{
		{
			Kind:             RiskOverLeverage,
			Name:             "Over-Leverage",
			Description:      "Average position size exceeds the recommended share of account balance.",
			DefaultThreshold: 2.0,
			Weight:           riskWeights[RiskOverLeverage],
		},
		{
			Kind:             RiskNoStopLoss,
			Name:             "Missing Stop-Loss",
			Description:      "Too many trades are executed without a stop-loss order.",
			DefaultThreshold: 80.0,
			Weight:           riskWeights[RiskNoStopLoss],
		},
		{
			Kind:             RiskHighDrawdown,
			Name:             "High Drawdown",
			Description:      "Peak-to-trough account decline exceeds the safe limit.",
			DefaultThreshold: 20.0,
			Weight:           riskWeights[RiskHighDrawdown],
		},
		{
			Kind:             RiskRevengeTrading,
			Name:             "Revenge Trading",
			Description:      "New trades are entered shortly after losses, a proxy for emotionally reactive trading.",
			DefaultThreshold: 10.0,
			Weight:           riskWeights[RiskRevengeTrading],
		},
		{
			Kind:             RiskPoorRRRatio,
			Name:             "Poor Risk-Reward Ratio",
			Description:      "Average win is too small relative to average loss.",
			DefaultThreshold: 1.0,
			Weight:           riskWeights[RiskPoorRRRatio],
		},
		{
			Kind:             RiskLowWinRate,
			Name:             "Low Win Rate",
			Description:      "Share of winning trades is below the acceptable level.",
			DefaultThreshold: 40.0,
			Weight:           riskWeights[RiskLowWinRate],
		},
		{
			Kind:             RiskConcentration,
			Name:             "Concentration Risk",
			Description:      "More than half of all trades are in a single symbol.",
			DefaultThreshold: concentrationTriggerPct,
			Weight:           riskWeights[RiskConcentration],
		},
		{
			Kind:             RiskOvertrading,
			Name:             "Overtrading",
			Description:      "Very short trades at high daily frequency.",
			DefaultThreshold: overtradingTradesPerDay,
			Weight:           riskWeights[RiskOvertrading],
		},
	}
}
