package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mt5Report = `<html><body>
<h1>Trade History Report</h1>
<table><tr><td>Account: 12345</td><td>Broker Demo</td></tr></table>
<table>
<tr><th>Open Time</th><th>Symbol</th><th>Type</th><th>Volume</th><th>Price</th><th>Profit</th></tr>
<tr><td>2024.01.01 10:00:00</td><td>EURUSD</td><td>buy</td><td>0.10</td><td>1.10000</td><td>50.00</td></tr>
<tr><td>2024.01.01 11:00:00</td><td>GBPUSD</td><td>sell</td><td>0.20</td><td>1.25000</td><td>(30.00)</td></tr>
<tr><td>2024.01.01 12:00:00</td><td>EURUSD</td><td>buy</td><td>0.15</td><td>1.10500</td><td>75.00</td></tr>
<tr><td>2024.01.01 13:00:00</td><td>Deposit</td><td>balance</td><td></td><td></td><td>10 000.00</td></tr>
</table>
</body></html>`

func TestParseHTML(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	t.Run("MT5Report", func(t *testing.T) {
		// Act
		records, err := n.ParseHTML([]byte(mt5Report))

		// Assert
		require.NoError(t, err)
		require.Len(t, records, 3, "balance row must be excluded")

		assert.Equal(t, "mt5_1", records[0].TradeID)
		assert.Equal(t, "EURUSD", records[0].Symbol)
		assert.Equal(t, "buy", records[0].TradeType)
		assert.Equal(t, 0.1, records[0].LotSize)
		assert.Equal(t, 50.0, records[0].ProfitLoss)
		assert.Equal(t, 1.1, records[0].EntryPrice)

		wantEntry, _ := time.Parse("2006-01-02 15:04:05", "2024-01-01 10:00:00")
		assert.Equal(t, wantEntry, records[0].EntryTime)
		// Single time column: exit falls back to entry.
		assert.Equal(t, records[0].EntryTime, records[0].ExitTime)

		assert.Equal(t, -30.0, records[1].ProfitLoss, "parenthesis notation is negative")
		assert.Equal(t, 75.0, records[2].ProfitLoss)
	})

	t.Run("TwoTimeAndPriceColumns", func(t *testing.T) {
		report := `<html><body><table>
<tr><th>Time</th><th>Time</th><th>Symbol</th><th>Type</th><th>Volume</th><th>Price</th><th>Price</th><th>Profit</th></tr>
<tr><td>2024.01.01 10:00:00</td><td>2024.01.01 12:30:00</td><td>EURUSD</td><td>buy</td><td>0.10</td><td>1.10000</td><td>1.10500</td><td>50.00</td></tr>
</table></body></html>`

		records, err := n.ParseHTML([]byte(report))

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 2.5, records[0].ExitTime.Sub(records[0].EntryTime).Hours())
		assert.Equal(t, 1.1, records[0].EntryPrice)
		assert.Equal(t, 1.105, records[0].ExitPrice)
	})

	t.Run("LastProfitColumnWins", func(t *testing.T) {
		report := `<html><body><table>
<tr><th>Open Time</th><th>Symbol</th><th>Type</th><th>Volume</th><th>Gross Profit</th><th>Profit</th></tr>
<tr><td>2024.01.01 10:00:00</td><td>EURUSD</td><td>buy</td><td>0.10</td><td>999.00</td><td>42.00</td></tr>
</table></body></html>`

		records, err := n.ParseHTML([]byte(report))

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 42.0, records[0].ProfitLoss)
	})

	t.Run("UnparseableDateFallsBackToNow", func(t *testing.T) {
		fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		nn := NewNormalizer(zap.NewNop())
		nn.now = func() time.Time { return fixed }

		report := `<html><body><table>
<tr><th>Open Time</th><th>Symbol</th><th>Type</th><th>Volume</th><th>Price</th><th>Profit</th></tr>
<tr><td>not a date</td><td>EURUSD</td><td>buy</td><td>0.10</td><td>1.10000</td><td>50.00</td></tr>
</table></body></html>`

		records, err := nn.ParseHTML([]byte(report))

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, fixed, records[0].EntryTime)
	})

	t.Run("NoHistoryTable", func(t *testing.T) {
		report := `<html><body><table><tr><td>just</td><td>numbers</td></tr></table></body></html>`

		_, err := n.ParseHTML([]byte(report))

		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.Reason, "no MT5-like history table found")
		assert.Equal(t, 1, formatErr.Tables)
	})

	t.Run("OnlyLedgerRows", func(t *testing.T) {
		report := `<html><body><table>
<tr><th>Open Time</th><th>Symbol</th><th>Type</th><th>Volume</th><th>Price</th><th>Profit</th></tr>
<tr><td>2024.01.01 10:00:00</td><td>Deposit</td><td>balance</td><td></td><td></td><td>1 000.00</td></tr>
<tr><td>2024.01.02 10:00:00</td><td>Bonus</td><td>credit</td><td></td><td></td><td>50.00</td></tr>
</table></body></html>`

		_, err := n.ParseHTML([]byte(report))

		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.Reason, "no valid trades")
	})

	t.Run("SpacerRowsCountAsFailures", func(t *testing.T) {
		report := `<html><body><table>
<tr><th>Open Time</th><th>Symbol</th><th>Type</th><th>Volume</th><th>Price</th><th>Profit</th></tr>
<tr><td>Summary</td><td>only two cells</td></tr>
</table></body></html>`

		_, err := n.ParseHTML([]byte(report))

		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Equal(t, 1, formatErr.RowFailures)
		assert.Contains(t, err.Error(), "failed on 1 candidate rows")
	})
}

func TestScoreHeaderRow(t *testing.T) {
	assert.Equal(t, 5, scoreHeaderRow([]string{"Open Time", "Symbol", "Type", "Volume", "Price", "Profit"}))
	assert.Equal(t, 3, scoreHeaderRow([]string{"Time", "Type", "Profit"}))
	assert.Equal(t, 0, scoreHeaderRow([]string{"Account", "Broker"}))
	// Exact text is required; data-row words do not count.
	assert.Equal(t, 0, scoreHeaderRow([]string{"time", "profit", "symbol"}))
}

func TestParseDispatch(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	t.Run("CSVExtension", func(t *testing.T) {
		records, err := n.Parse("trades.csv", []byte("profit_loss\n50\n"))
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("HTMLExtension", func(t *testing.T) {
		records, err := n.Parse("report.html", []byte(mt5Report))
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("UnknownExtension", func(t *testing.T) {
		_, err := n.Parse("trades.xlsx", []byte("whatever"))
		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.Reason, "unrecognized file type")
	})
}
