package ingest

import (
	"strconv"
	"strings"
	"time"
)

// cleanNumber converts a currency-formatted cell to a float. Parenthesis
// notation means negative: "(50.00)" -> -50.00. Currency symbols, spaces and
// thousands separators are stripped; anything unparseable becomes 0.
func cleanNumber(text string) float64 {
	if text == "" {
		return 0
	}

	if strings.Contains(text, "(") && strings.Contains(text, ")") {
		text = "-" + strings.NewReplacer("(", "", ")", "").Replace(text)
	}

	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// dateLayouts are tried in order after delimiter normalization.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// cleanDate parses a broker-formatted timestamp. MT5 reports use dots as
// date delimiters (2025.11.01 12:30:00); those are normalized to dashes
// before parsing.
func cleanDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	text = strings.ReplaceAll(text, ".", "-")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
