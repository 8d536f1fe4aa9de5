package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateScore(t *testing.T) {
	t.Run("NoFindings", func(t *testing.T) {
		res := CalculateScore(nil)

		assert.Equal(t, 95.0, res.Score)
		assert.Equal(t, "A", res.Grade)
		assert.Equal(t, 5.0, res.ImprovementPotential)
		assert.Equal(t, 0, res.TotalRisks)
		assert.Empty(t, res.Breakdown)
		assert.Empty(t, res.TopRisks)
		assert.Equal(t, "Excellent risk management! Continue with your disciplined approach.", res.Recommendation)
	})

	t.Run("MixedFindings", func(t *testing.T) {
		findings := []Finding{
			{Kind: RiskOverLeverage, Severity: 75, Message: "oversized positions"},
			{Kind: RiskNoStopLoss, Severity: 60, Message: "missing stops"},
			{Kind: RiskLowWinRate, Severity: 40, Message: "low win rate"},
		}

		res := CalculateScore(findings)

		// Impact 22.5+15+2 over 60 used weight, prorated against the 40
		// clean weight.
		assert.InDelta(t, 76.3, res.Score, 0.001)
		assert.Equal(t, "B", res.Grade)
		assert.InDelta(t, 23.7, res.ImprovementPotential, 0.001)
		assert.Equal(t, 3, res.TotalRisks)

		assert.Equal(t, SeverityCounts{Low: 0, Medium: 2, High: 1}, res.Counts)
		assert.Equal(t, []string{RiskOverLeverage, RiskNoStopLoss, RiskLowWinRate}, res.TopRisks)

		require.Len(t, res.Breakdown, 3)
		assert.Equal(t, 22.5, res.Breakdown[0].Contribution)
		assert.Equal(t, 30.0, res.Breakdown[0].Weight)

		assert.Contains(t, res.Recommendation, "Focus on: Over Leverage, No Stop Loss, Low Win Rate.")
	})

	t.Run("SingleModerateFinding", func(t *testing.T) {
		res := CalculateScore([]Finding{
			{Kind: RiskOverLeverage, Severity: 50},
		})

		// 30 weight at half severity hurts 15 of 30 used weight; the other
		// 70 weight counts as clean.
		assert.InDelta(t, 95.5, res.Score, 0.001)
		assert.Equal(t, "A", res.Grade)
		assert.Equal(t, SeverityCounts{Medium: 1}, res.Counts)
	})

	t.Run("EverythingAtWorst", func(t *testing.T) {
		var findings []Finding
		for kind := range riskWeights {
			findings = append(findings, Finding{Kind: kind, Severity: 100})
		}

		res := CalculateScore(findings)

		assert.Equal(t, 0.0, res.Score)
		assert.Equal(t, "D", res.Grade)
		assert.Equal(t, 8, res.Counts.High)
		assert.Len(t, res.TopRisks, 3)
	})

	t.Run("UnknownKindSkipped", func(t *testing.T) {
		res := CalculateScore([]Finding{
			{Kind: "exotic_new_rule", Severity: 100},
			{Kind: RiskOverLeverage, Severity: 50},
		})

		assert.InDelta(t, 95.5, res.Score, 0.001)
		assert.Equal(t, 1, res.TotalRisks)
	})
}

func TestGradeFor(t *testing.T) {
	assert.Equal(t, "A", gradeFor(100))
	assert.Equal(t, "A", gradeFor(80))
	assert.Equal(t, "B", gradeFor(79.99))
	assert.Equal(t, "B", gradeFor(60))
	assert.Equal(t, "C", gradeFor(59.99))
	assert.Equal(t, "C", gradeFor(40))
	assert.Equal(t, "D", gradeFor(39.99))
	assert.Equal(t, "D", gradeFor(0))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "No Stop Loss", titleCase("no_stop_loss"))
	assert.Equal(t, "Overtrading", titleCase("overtrading"))
}

func TestScorecard(t *testing.T) {
	res := CalculateScore([]Finding{
		{Kind: RiskNoStopLoss, Severity: 60, Message: "missing stops"},
	})

	card := Scorecard(res)

	assert.Contains(t, card, "RISK HEALTH SCORECARD")
	assert.Contains(t, card, "grade "+res.Grade)
	assert.Contains(t, card, RiskNoStopLoss)
	assert.Contains(t, card, res.Recommendation)
}

func TestRegistryMatchesWeights(t *testing.T) {
	infos := Registry()
	require.Len(t, infos, len(riskWeights))

	seen := make(map[string]bool)
	for _, info := range infos {
		assert.Equal(t, riskWeights[info.Kind], info.Weight, info.Kind)
		assert.False(t, seen[info.Kind], "duplicate kind %s", info.Kind)
		seen[info.Kind] = true
		assert.NotEmpty(t, info.Name)
		assert.NotEmpty(t, info.Description)
	}
}
