package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"trade-risk-analyzer-go/internal/models"
)

// ParseCSV reads header-named trade data. Only profit_loss is required;
// the optional columns, when present, unlock the metrics and rules that
// depend on them.
func (n *Normalizer) ParseCSV(r io.Reader) ([]models.TradeRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("failed to read CSV header: %v", err)}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	profitIdx, ok := cols["profit_loss"]
	if !ok {
		return nil, &FormatError{Reason: "required column profit_loss not found in CSV"}
	}

	idIdx, hasID := cols["trade_id"]
	symbolIdx, hasSymbol := cols["symbol"]
	typeIdx, hasType := cols["trade_type"]
	lotIdx, hasLot := cols["lot_size"]
	slIdx, hasSL := cols["stop_loss"]
	balanceIdx, hasBalance := cols["account_balance_before"]
	entryIdx, hasEntry := cols["entry_time"]
	exitIdx, hasExit := cols["exit_time"]

	cell := func(row []string, idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	var records []models.TradeRecord
	failures := 0

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			failures++
			continue
		}
		if cell(row, profitIdx) == "" && strings.Join(row, "") == "" {
			continue // blank line
		}

		rec := models.TradeRecord{
			TradeID:    fmt.Sprintf("csv_%d", len(records)+1),
			ProfitLoss: cleanNumber(cell(row, profitIdx)),
		}
		if hasID && cell(row, idIdx) != "" {
			rec.TradeID = cell(row, idIdx)
		}
		if hasSymbol {
			rec.Symbol = cell(row, symbolIdx)
		}
		if hasType {
			rec.TradeType = cell(row, typeIdx)
		}
		if hasLot {
			rec.LotSize = cleanNumber(cell(row, lotIdx))
		}
		if hasSL {
			// An empty cell parses to 0, which downstream already treats
			// as "no stop loss set".
			sl := cleanNumber(cell(row, slIdx))
			rec.StopLoss = &sl
		}
		if hasBalance && cell(row, balanceIdx) != "" {
			balance := cleanNumber(cell(row, balanceIdx))
			rec.AccountBalanceBefore = &balance
		}
		if hasEntry {
			if t, ok := cleanDate(cell(row, entryIdx)); ok {
				rec.EntryTime = t
			}
		}
		if hasExit {
			if t, ok := cleanDate(cell(row, exitIdx)); ok {
				rec.ExitTime = t
			}
		}
		if rec.ExitTime.IsZero() {
			rec.ExitTime = rec.EntryTime
		}

		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &FormatError{
			Reason:      "no valid trades found in CSV",
			RowFailures: failures,
		}
	}

	return records, nil
}
