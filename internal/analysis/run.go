package analysis

import "trade-risk-analyzer-go/internal/models"

// Result bundles the output of one full pipeline run.
type Result struct {
	Metrics  Snapshot    `json:"metrics"`
	Findings []Finding   `json:"findings"`
	Score    ScoreResult `json:"score"`
}

// Run executes the metrics -> detection -> scoring chain over a record
// sequence.
func Run(records []models.TradeRecord, th Thresholds) Result {
	snap := ComputeMetrics(records)
	findings := DetectRisks(snap, records, th)
	return Result{
		Metrics:  snap,
		Findings: findings,
		Score:    CalculateScore(findings),
	}
}
