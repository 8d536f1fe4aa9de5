package ingest

import "fmt"

// FormatError is returned when an input cannot be recognized or yields no
// usable trades: unknown file type, missing required column, no
// history-table candidate in an HTML report, or every candidate row failing
// to parse. It is fatal to the ingestion call; the counters exist so the
// caller can report how much input was considered.
type FormatError struct {
	Reason      string
	Tables      int // HTML tables scanned
	RowFailures int // candidate rows that failed to parse
}

func (e *FormatError) Error() string {
	if e.RowFailures > 0 {
		return fmt.Sprintf("%s (failed on %d candidate rows)", e.Reason, e.RowFailures)
	}
	return e.Reason
}
