package ingest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"trade-risk-analyzer-go/internal/models"
)

// headerScanLimit bounds the header search: broker reports can carry long
// preambles before the actual history table.
const headerScanLimit = 50

// minHeaderScore is the number of keyword families a row must match to be
// considered a header candidate.
const minHeaderScore = 3

// tableRow keeps both views of a row: all cells (th+td) for header
// detection, and td-only cells for data extraction.
type tableRow struct {
	all []string
	td  []string
}

type htmlTable struct {
	rows []tableRow
}

// headerCandidate is one scored header row. Candidates are ranked by score
// descending with ties broken by document order.
type headerCandidate struct {
	score    int
	tableIdx int
	rowIdx   int
	headers  []string
}

// columnMap holds the positional mapping from header columns to trade
// fields. -1 means the column was not found.
type columnMap struct {
	entryTime  int
	exitTime   int
	symbol     int
	tradeType  int
	volume     int
	profit     int
	entryPrice int
	exitPrice  int
}

// ParseHTML extracts the trade history from an arbitrary broker HTML export.
// There is no fixed schema: the history table is located heuristically by
// scoring early rows against known header keyword families, and columns are
// then mapped positionally rather than by exact name.
func (n *Normalizer) ParseHTML(content []byte) ([]models.TradeRecord, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("invalid HTML document: %v", err)}
	}

	tables := extractTables(doc)

	var candidates []headerCandidate
	for ti, table := range tables {
		limit := len(table.rows)
		if limit > headerScanLimit {
			limit = headerScanLimit
		}
		for ri := 0; ri < limit; ri++ {
			cells := table.rows[ri].all
			if score := scoreHeaderRow(cells); score >= minHeaderScore {
				candidates = append(candidates, headerCandidate{
					score:    score,
					tableIdx: ti,
					rowIdx:   ri,
					headers:  cells,
				})
			}
		}
	}

	if len(candidates) == 0 {
		return nil, &FormatError{
			Reason: "no MT5-like history table found",
			Tables: len(tables),
		}
	}

	// Highest score wins; SliceStable preserves document order on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	best := candidates[0]

	n.log.Debug("Selected history table",
		zap.Int("score", best.score),
		zap.Int("table", best.tableIdx),
		zap.Strings("headers", best.headers),
	)

	cols := buildColumnMap(best.headers)
	if cols.profit == -1 {
		return nil, &FormatError{
			Reason: "no profit column found in history table",
			Tables: len(tables),
		}
	}

	requiredIdx := cols.maxIndex()
	rows := tables[best.tableIdx].rows[best.rowIdx+1:]

	var records []models.TradeRecord
	failures := 0

	for _, row := range rows {
		cells := row.td
		if len(cells) == 0 {
			continue
		}
		// Spacer and summary rows are shorter than the mapped columns.
		if len(cells) <= requiredIdx {
			failures++
			continue
		}

		symbol := ""
		if cols.symbol != -1 {
			symbol = cells[cols.symbol]
		}
		tradeType := "Unknown"
		if cols.tradeType != -1 {
			tradeType = cells[cols.tradeType]
		}

		if symbol == "" || tradeType == "" {
			continue
		}
		// Ledger adjustment rows, not trades.
		switch strings.ToLower(tradeType) {
		case "balance", "credit", "total":
			continue
		}

		profit := cleanNumber(cells[cols.profit])

		var lotSize, entryPx, exitPx float64
		if cols.volume != -1 {
			lotSize = cleanNumber(cells[cols.volume])
		}
		if cols.entryPrice != -1 {
			entryPx = cleanNumber(cells[cols.entryPrice])
		}
		if cols.exitPrice != -1 {
			exitPx = cleanNumber(cells[cols.exitPrice])
		}

		// Unparseable dates fall back to the processing time rather than
		// dropping the row; losing a trade is worse than a wrong timestamp.
		entryTime := n.now()
		if cols.entryTime != -1 {
			if t, ok := cleanDate(cells[cols.entryTime]); ok {
				entryTime = t
			}
		}
		exitTime := entryTime
		if cols.exitTime != -1 {
			if t, ok := cleanDate(cells[cols.exitTime]); ok {
				exitTime = t
			}
		}

		records = append(records, models.TradeRecord{
			TradeID:    fmt.Sprintf("mt5_%d", len(records)+1),
			Symbol:     symbol,
			TradeType:  tradeType,
			LotSize:    lotSize,
			ProfitLoss: profit,
			EntryTime:  entryTime,
			ExitTime:   exitTime,
			EntryPrice: entryPx,
			ExitPrice:  exitPx,
		})
	}

	if len(records) == 0 {
		return nil, &FormatError{
			Reason:      "no valid trades found in history table",
			Tables:      len(tables),
			RowFailures: failures,
		}
	}

	n.log.Debug("Extracted trades from HTML report",
		zap.Int("count", len(records)),
		zap.Int("row_failures", failures),
	)
	return records, nil
}

// scoreHeaderRow counts keyword-family matches in a candidate header row.
// Exact cell text is intentional: data rows contain these words far less
// often than loose substring matches would.
func scoreHeaderRow(cells []string) int {
	set := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		set[c] = struct{}{}
	}
	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := set[k]; ok {
				return true
			}
		}
		return false
	}

	score := 0
	if has("Time", "Open Time") {
		score++
	}
	if has("Profit") {
		score++
	}
	if has("Symbol") {
		score++
	}
	if has("Type") {
		score++
	}
	if has("Volume", "Size") {
		score++
	}
	return score
}

// buildColumnMap maps header columns to fields by position. Duplicate
// columns are meaningful: two time columns are entry/exit, two price columns
// likewise, and the last profit-like column wins because reports list Swap
// before the final Profit.
func buildColumnMap(headers []string) columnMap {
	lower := make([]string, len(headers))
	for i, h := range headers {
		lower[i] = strings.ToLower(h)
	}

	findAll := func(keywords ...string) []int {
		var indices []int
		for i, h := range lower {
			for _, k := range keywords {
				if strings.Contains(h, k) {
					indices = append(indices, i)
					break
				}
			}
		}
		return indices
	}

	cols := columnMap{
		entryTime: -1, exitTime: -1, symbol: -1, tradeType: -1,
		volume: -1, profit: -1, entryPrice: -1, exitPrice: -1,
	}

	if idxs := findAll("symbol", "item"); len(idxs) > 0 {
		cols.symbol = idxs[0]
	}
	if idxs := findAll("type"); len(idxs) > 0 {
		cols.tradeType = idxs[0]
	}
	if idxs := findAll("profit"); len(idxs) > 0 {
		cols.profit = idxs[len(idxs)-1]
	}
	if idxs := findAll("volume", "size", "quantity"); len(idxs) > 0 {
		cols.volume = idxs[0]
	}

	if idxs := findAll("time", "date"); len(idxs) >= 2 {
		cols.entryTime = idxs[0]
		cols.exitTime = idxs[1]
	} else if len(idxs) == 1 {
		cols.entryTime = idxs[0]
		cols.exitTime = idxs[0]
	}

	if idxs := findAll("price"); len(idxs) >= 2 {
		cols.entryPrice = idxs[0]
		cols.exitPrice = idxs[1]
	} else if len(idxs) == 1 {
		cols.entryPrice = idxs[0]
	}

	return cols
}

func (m columnMap) maxIndex() int {
	max := 0
	for _, idx := range []int{
		m.entryTime, m.exitTime, m.symbol, m.tradeType,
		m.volume, m.profit, m.entryPrice, m.exitPrice,
	} {
		if idx > max {
			max = idx
		}
	}
	return max
}

// extractTables walks the document and collects every table's rows.
func extractTables(doc *html.Node) []htmlTable {
	var tables []htmlTable

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, htmlTable{rows: extractRows(n)})
			// Nested tables inside this one are still scanned.
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables
}

func extractRows(table *html.Node) []tableRow {
	var rows []tableRow

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows = append(rows, extractCells(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			// Do not descend into nested tables; they are collected
			// separately by extractTables.
			if c.Type == html.ElementNode && c.Data == "table" {
				continue
			}
			walk(c)
		}
	}
	walk(table)
	return rows
}

func extractCells(tr *html.Node) tableRow {
	var row tableRow
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "th":
			row.all = append(row.all, nodeText(c))
		case "td":
			text := nodeText(c)
			row.all = append(row.all, text)
			row.td = append(row.td, text)
		}
	}
	return row
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
