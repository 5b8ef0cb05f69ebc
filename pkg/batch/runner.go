package batch

import (
	"context"
	"fmt"
	"time"

	"trends-go/pkg/logger"
	"trends-go/pkg/trends"
)

// maxMonthlyLookback is the upstream cap on month-granular timeframes.
const maxMonthlyLookback = 36

// Timeframe derives the lookback directive for a request. Lookbacks beyond
// the monthly cap fall back to the five-year directive.
func Timeframe(lookbackMonths int) string {
	if lookbackMonths <= maxMonthlyLookback {
		return fmt.Sprintf("today %d-m", lookbackMonths)
	}
	return "today 5-y"
}

// Runner partitions keywords into batches, queries the collaborator once per
// batch with a throttling sleep in between, and reduces each keyword's series
// to its arithmetic mean.
type Runner struct {
	client trends.QueryClient
	log    *logger.Logger
}

func NewRunner(client trends.QueryClient) *Runner {
	return &Runner{
		client: client,
		log:    logger.GetLogger().WithField("component", "batch_runner"),
	}
}

// Run executes one request. Results come back in input keyword order across
// batch boundaries. Collaborator failures abort the run with no partial
// results.
func (r *Runner) Run(ctx context.Context, req *Request) (*Response, error) {
	results := make([]Result, 0, len(req.Keywords))
	if len(req.Keywords) == 0 {
		return &Response{Results: results}, nil
	}

	timeframe := Timeframe(req.LookbackMonths)
	batches := chunk(req.Keywords, req.BatchSize)

	r.log.WithFields(map[string]interface{}{
		"keywords_count": len(req.Keywords),
		"batch_count":    len(batches),
		"batch_size":     req.BatchSize,
		"timeframe":      timeframe,
		"geo":            req.Geo,
	}).Info("Starting batch run")

	for i, keywords := range batches {
		r.log.WithFields(map[string]interface{}{
			"batch_number": i + 1,
			"batch_size":   len(keywords),
			"progress":     fmt.Sprintf("%d/%d", i+1, len(batches)),
		}).Debug("Querying batch")

		r.client.BuildPayload(keywords, trends.CategoryAll, timeframe, req.Geo)
		table, err := r.client.InterestOverTime(ctx)
		if err != nil {
			r.log.WithError(err).WithField("batch_number", i+1).Error("Batch query failed")
			return nil, err
		}

		for _, keyword := range keywords {
			results = append(results, reduceKeyword(table, keyword))
		}

		// The sleep throttles request rate against the upstream and runs
		// after every batch, the last one included.
		if req.SleepBetweenBatches > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(req.SleepBetweenBatches):
			}
		}
	}

	r.log.WithField("results_count", len(results)).Info("Batch run completed")
	return &Response{Results: results}, nil
}

// chunk partitions keywords into consecutive groups of at most size elements,
// preserving order. The last group may be shorter.
func chunk(keywords []string, size int) [][]string {
	if size < 1 {
		size = 1
	}

	batches := make([][]string, 0, (len(keywords)+size-1)/size)
	for i := 0; i < len(keywords); i += size {
		end := i + size
		if end > len(keywords) {
			end = len(keywords)
		}
		batches = append(batches, keywords[i:end])
	}
	return batches
}

// reduceKeyword extracts one keyword's series from the table and reduces it
// to a mean. When the table carries a partiality marker, the series
// restricted to complete rows wins unless that restriction empties it.
func reduceKeyword(table *trends.InterestTable, keyword string) Result {
	result := Result{
		Keyword: keyword,
		Series:  make([]float64, 0),
	}

	idx, ok := table.Lookup(keyword)
	if !ok {
		return result
	}

	series := columnValues(table, idx, false)
	if table.PartialFlagged {
		if complete := columnValues(table, idx, true); len(complete) > 0 {
			series = complete
		}
	}

	if len(series) > 0 {
		m := mean(series)
		result.Interest = &m
		result.Series = series
	}
	return result
}

// columnValues collects the non-missing values of one keyword column,
// optionally skipping rows flagged partial.
func columnValues(table *trends.InterestTable, idx int, skipPartial bool) []float64 {
	values := make([]float64, 0, len(table.Rows))
	for _, row := range table.Rows {
		if skipPartial && row.Partial {
			continue
		}
		if v, ok := row.ValueAt(idx); ok {
			values = append(values, v)
		}
	}
	return values
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
