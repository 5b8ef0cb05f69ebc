package trends

import (
	"context"
	"fmt"
	"time"
)

// CategoryAll queries across all categories.
const CategoryAll = 0

// QueryClient is the interest-over-time collaborator. BuildPayload stores the
// query state, InterestOverTime fetches the table for the last-built payload.
type QueryClient interface {
	BuildPayload(keywords []string, category int, timeframe, geo string)
	InterestOverTime(ctx context.Context) (*InterestTable, error)
}

// InterestRow is one time-indexed row of interest values, aligned to the
// table's keyword order.
type InterestRow struct {
	Time    time.Time
	Values  []float64
	HasData []bool
	Partial bool
}

// InterestTable holds interest-over-time values keyed by keyword column.
// PartialFlagged reports whether any row carried a partiality marker, which
// is when the upstream response grows the isPartial column.
type InterestTable struct {
	Keywords       []string
	Rows           []InterestRow
	PartialFlagged bool
}

// Lookup returns the column index for a keyword. A keyword is only present
// when the table actually has data rows covering its column.
func (t *InterestTable) Lookup(keyword string) (int, bool) {
	for i, kw := range t.Keywords {
		if kw == keyword {
			if len(t.Rows) == 0 || i >= len(t.Rows[0].Values) {
				return 0, false
			}
			return i, true
		}
	}
	return 0, false
}

// ValueAt returns the interest value for a column, reporting false for
// missing data points.
func (r *InterestRow) ValueAt(idx int) (float64, bool) {
	if idx >= len(r.Values) {
		return 0, false
	}
	if idx < len(r.HasData) && !r.HasData[idx] {
		return 0, false
	}
	return r.Values[idx], true
}

// StatusError is returned when the trends API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trends API returned status %d: %s", e.Code, e.Body)
}
