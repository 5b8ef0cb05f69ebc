package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Request field defaults, applied when the input document omits them.
const (
	DefaultLookbackMonths = 12
	DefaultBatchSize      = 5
	DefaultSleepMs        = 1000
	DefaultTZ             = 360
)

// Request is one parsed batch run. Immutable once decoded.
type Request struct {
	Keywords            []string
	LookbackMonths      int
	Geo                 string
	BatchSize           int
	SleepBetweenBatches time.Duration
	TZ                  int
	Proxy               string
}

// Result is the aggregated interest for one input keyword. Interest is null
// and Series empty when the upstream has no data for the keyword.
type Result struct {
	Keyword  string    `json:"keyword"`
	Interest *float64  `json:"interest"`
	Series   []float64 `json:"series"`
}

// Response is the output document, one Result per input keyword in input
// order.
type Response struct {
	Results []Result `json:"results"`
}

// DecodeRequest reads a single request document, applying defaults and
// flooring batchSize to at least 1 and the inter-batch sleep to at least 0.
func DecodeRequest(r io.Reader) (*Request, error) {
	var wire struct {
		Keywords              []string `json:"keywords"`
		LookbackMonths        *int     `json:"lookbackMonths"`
		Geo                   string   `json:"geo"`
		BatchSize             *int     `json:"batchSize"`
		SleepBetweenBatchesMs *int     `json:"sleepBetweenBatchesMs"`
		TZ                    *int     `json:"tz"`
		Proxy                 string   `json:"proxy"`
	}

	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("invalid request JSON: %w", err)
	}

	req := &Request{
		Keywords:            wire.Keywords,
		LookbackMonths:      DefaultLookbackMonths,
		Geo:                 wire.Geo,
		BatchSize:           DefaultBatchSize,
		SleepBetweenBatches: DefaultSleepMs * time.Millisecond,
		TZ:                  DefaultTZ,
		Proxy:               wire.Proxy,
	}

	if wire.LookbackMonths != nil {
		req.LookbackMonths = *wire.LookbackMonths
	}
	if wire.BatchSize != nil {
		req.BatchSize = *wire.BatchSize
	}
	if wire.SleepBetweenBatchesMs != nil {
		req.SleepBetweenBatches = time.Duration(*wire.SleepBetweenBatchesMs) * time.Millisecond
	}
	if wire.TZ != nil {
		req.TZ = *wire.TZ
	}

	if req.BatchSize < 1 {
		req.BatchSize = 1
	}
	if req.SleepBetweenBatches < 0 {
		req.SleepBetweenBatches = 0
	}

	return req, nil
}
