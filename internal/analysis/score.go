package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// riskWeights maps each risk kind to its penalty weight. The five heavy
// categories sum to 100; the three 5-point rules are add-on penalties on
// top, so every rule triggering at once can floor the raw score.
var riskWeights = map[string]float64{
	RiskOverLeverage:   30,
	RiskNoStopLoss:     25,
	RiskHighDrawdown:   20,
	RiskRevengeTrading: 15,
	RiskPoorRRRatio:    10,
	RiskLowWinRate:     5,
	RiskConcentration:  5,
	RiskOvertrading:    5,
}

// Severity bucket boundaries.
const (
	severityHigh   = 70.0
	severityMedium = 40.0
)

// noFindingsScore is deliberately not 100: there is always room to improve.
const noFindingsScore = 95.0

// BreakdownEntry is one finding's contribution to the final score.
type BreakdownEntry struct {
	Kind         string  `json:"kind"`
	Severity     float64 `json:"severity"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Message      string  `json:"message"`
}

// SeverityCounts buckets findings by severity: low <40, medium [40,70),
// high >=70.
type SeverityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// ScoreResult is the aggregated risk score for one analysis run.
type ScoreResult struct {
	Score                float64          `json:"score"` // 0-100
	Grade                string           `json:"grade"` // A-D
	ImprovementPotential float64          `json:"improvement_potential"`
	TotalRisks           int              `json:"total_risks"`
	Breakdown            []BreakdownEntry `json:"breakdown"`
	TopRisks             []string         `json:"top_risks"`
	Counts               SeverityCounts   `json:"risk_counts"`
	Recommendation       string           `json:"recommendation"`
}

var gradeRecommendations = map[string]string{
	"A": "Maintain your excellent risk management practices. Consider periodic reviews to stay consistent.",
	"B": "Good risk management overall. Focus on addressing the few areas of concern to improve your score.",
	"C": "Significant improvement needed in risk management. Prioritize addressing the high-risk areas identified.",
	"D": "Urgent attention required. Your current risk management practices expose you to high potential losses.",
}

// CalculateScore turns detected findings into a single weighted score and
// grade. Undetected risk categories count as fully clean: their weight is
// prorated back toward 100 so absence is rewarded.
func CalculateScore(findings []Finding) ScoreResult {
	if len(findings) == 0 {
		return ScoreResult{
			Score:                noFindingsScore,
			Grade:                gradeFor(noFindingsScore),
			ImprovementPotential: 100 - noFindingsScore,
			Breakdown:            []BreakdownEntry{},
			TopRisks:             []string{},
			Recommendation:       "Excellent risk management! Continue with your disciplined approach.",
		}
	}

	var breakdown []BreakdownEntry
	var counts SeverityCounts
	totalImpact := 0.0
	usedWeight := 0.0

	for _, f := range findings {
		weight, ok := riskWeights[f.Kind]
		if !ok {
			continue // unknown add-on detector; never blanks the result
		}
		contribution := round2(f.Severity / 100 * weight)
		breakdown = append(breakdown, BreakdownEntry{
			Kind:         f.Kind,
			Severity:     f.Severity,
			Weight:       weight,
			Contribution: contribution,
			Message:      f.Message,
		})
		totalImpact += contribution
		usedWeight += weight

		switch {
		case f.Severity >= severityHigh:
			counts.High++
		case f.Severity >= severityMedium:
			counts.Medium++
		default:
			counts.Low++
		}
	}

	rawScore := 100 - totalImpact
	if rawScore < 0 {
		rawScore = 0
	}
	// Blend in the undetected categories as fully clean.
	if usedWeight < 100 {
		rawScore = (rawScore*usedWeight + 100*(100-usedWeight)) / 100
	}
	score := round2(rawScore)
	grade := gradeFor(score)

	ranked := make([]BreakdownEntry, len(breakdown))
	copy(ranked, breakdown)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Contribution > ranked[j].Contribution
	})
	topRisks := make([]string, 0, 3)
	for i := 0; i < len(ranked) && i < 3; i++ {
		topRisks = append(topRisks, ranked[i].Kind)
	}

	return ScoreResult{
		Score:                score,
		Grade:                grade,
		ImprovementPotential: round2(100 - score),
		TotalRisks:           len(breakdown),
		Breakdown:            breakdown,
		TopRisks:             topRisks,
		Counts:               counts,
		Recommendation:       recommendationFor(grade, topRisks),
	}
}

// gradeFor maps a score to its letter band: A=[80,100], B=[60,80),
// C=[40,60), D below. The bands partition the whole range with no gaps or
// overlaps; anything below 0 is D.
func gradeFor(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	default:
		return "D"
	}
}

func recommendationFor(grade string, topRisks []string) string {
	rec := gradeRecommendations[grade]
	if len(topRisks) == 0 {
		return rec
	}
	names := make([]string, len(topRisks))
	for i, kind := range topRisks {
		names[i] = titleCase(kind)
	}
	return rec + " Focus on: " + strings.Join(names, ", ") + "."
}

func titleCase(kind string) string {
	words := strings.Split(kind, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Scorecard renders a plain-text summary of a score result.
func Scorecard(res ScoreResult) string {
	var b strings.Builder
	b.WriteString("RISK HEALTH SCORECARD\n")
	b.WriteString(fmt.Sprintf("  Overall score: %.1f/100 (grade %s)\n", res.Score, res.Grade))
	b.WriteString(fmt.Sprintf("  Risks detected: %d (high %d / medium %d / low %d)\n",
		res.TotalRisks, res.Counts.High, res.Counts.Medium, res.Counts.Low))
	b.WriteString(fmt.Sprintf("  Improvement potential: %.1f%%\n", res.ImprovementPotential))
	for _, entry := range res.Breakdown {
		b.WriteString(fmt.Sprintf("  - %-18s severity %5.1f  weight %2.0f  impact -%.1f\n",
			entry.Kind, entry.Severity, entry.Weight, entry.Contribution))
	}
	b.WriteString("  " + res.Recommendation + "\n")
	return b.String()
}
