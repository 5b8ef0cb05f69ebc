package batch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"trends-go/pkg/trends"
)

type recordedCall struct {
	keywords  []string
	category  int
	timeframe string
	geo       string
}

// fakeClient records BuildPayload calls and answers InterestOverTime from
// the respond callback.
type fakeClient struct {
	calls   []recordedCall
	pending recordedCall
	respond func(call recordedCall) (*trends.InterestTable, error)
}

func (f *fakeClient) BuildPayload(keywords []string, category int, timeframe, geo string) {
	kws := make([]string, len(keywords))
	copy(kws, keywords)
	f.pending = recordedCall{keywords: kws, category: category, timeframe: timeframe, geo: geo}
}

func (f *fakeClient) InterestOverTime(ctx context.Context) (*trends.InterestTable, error) {
	f.calls = append(f.calls, f.pending)
	return f.respond(f.pending)
}

// tableFor builds a complete table: one row per entry of rows, values aligned
// to keywords.
func tableFor(keywords []string, rows [][]float64) *trends.InterestTable {
	table := &trends.InterestTable{Keywords: keywords}
	for _, values := range rows {
		table.Rows = append(table.Rows, trends.InterestRow{Values: values})
	}
	return table
}

func TestRun_EmptyKeywords(t *testing.T) {
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			t.Fatal("Collaborator must not be invoked for an empty keyword list")
			return nil, nil
		},
	}

	start := time.Now()
	resp, err := NewRunner(client).Run(context.Background(), &Request{
		BatchSize:           1,
		SleepBetweenBatches: time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(client.calls) != 0 {
		t.Errorf("Expected 0 collaborator calls, got %d", len(client.calls))
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Empty request must not sleep")
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"results":[]}` {
		t.Errorf(`Expected {"results":[]}, got %s`, data)
	}
}

func TestRun_BatchingAndOrder(t *testing.T) {
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			rows := make([][]float64, 0)
			row := make([]float64, len(call.keywords))
			for i := range row {
				row[i] = 50
			}
			rows = append(rows, row)
			return tableFor(call.keywords, rows), nil
		},
	}

	req := &Request{
		Keywords:       []string{"a", "b", "c"},
		LookbackMonths: 12,
		BatchSize:      2,
	}

	resp, err := NewRunner(client).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(client.calls) != 2 {
		t.Fatalf("Expected 2 collaborator calls, got %d", len(client.calls))
	}

	first, second := client.calls[0], client.calls[1]
	if len(first.keywords) != 2 || first.keywords[0] != "a" || first.keywords[1] != "b" {
		t.Errorf("Unexpected first batch: %v", first.keywords)
	}
	if len(second.keywords) != 1 || second.keywords[0] != "c" {
		t.Errorf("Unexpected second batch: %v", second.keywords)
	}

	for _, call := range client.calls {
		if call.category != trends.CategoryAll {
			t.Errorf("Expected category %d, got %d", trends.CategoryAll, call.category)
		}
		if call.timeframe != "today 12-m" {
			t.Errorf("Expected timeframe 'today 12-m', got %q", call.timeframe)
		}
	}

	if len(resp.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(resp.Results))
	}
	for i, want := range []string{"a", "b", "c"} {
		if resp.Results[i].Keyword != want {
			t.Errorf("Result %d: expected keyword %q, got %q", i, want, resp.Results[i].Keyword)
		}
	}
}

func TestRun_MeanCalculation(t *testing.T) {
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			return tableFor(call.keywords, [][]float64{{1}, {2}, {3}, {4}}), nil
		},
	}

	resp, err := NewRunner(client).Run(context.Background(), &Request{
		Keywords:  []string{"go"},
		BatchSize: 5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := resp.Results[0]
	if result.Interest == nil {
		t.Fatal("Expected non-null interest")
	}
	if *result.Interest != 2.5 {
		t.Errorf("Expected interest 2.5, got %v", *result.Interest)
	}
	if len(result.Series) != 4 {
		t.Errorf("Expected 4 series points, got %d", len(result.Series))
	}
}

func TestRun_MissingKeyword(t *testing.T) {
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			// Empty table: no data rows at all.
			return &trends.InterestTable{Keywords: call.keywords}, nil
		},
	}

	resp, err := NewRunner(client).Run(context.Background(), &Request{
		Keywords:  []string{"obscure"},
		BatchSize: 5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := resp.Results[0]
	if result.Keyword != "obscure" {
		t.Errorf("Expected keyword 'obscure', got %q", result.Keyword)
	}
	if result.Interest != nil {
		t.Errorf("Expected null interest, got %v", *result.Interest)
	}
	if len(result.Series) != 0 {
		t.Errorf("Expected empty series, got %v", result.Series)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"keyword":"obscure","interest":null,"series":[]}` {
		t.Errorf("Unexpected result encoding: %s", data)
	}
}

func TestRun_MissingValuesDropped(t *testing.T) {
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			return &trends.InterestTable{
				Keywords: call.keywords,
				Rows: []trends.InterestRow{
					{Values: []float64{10}, HasData: []bool{true}},
					{Values: []float64{0}, HasData: []bool{false}},
					{Values: []float64{20}, HasData: []bool{true}},
				},
			}, nil
		},
	}

	resp, err := NewRunner(client).Run(context.Background(), &Request{
		Keywords:  []string{"go"},
		BatchSize: 5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := resp.Results[0]
	if len(result.Series) != 2 {
		t.Fatalf("Expected 2 series points, got %v", result.Series)
	}
	if *result.Interest != 15 {
		t.Errorf("Expected interest 15, got %v", *result.Interest)
	}
}

func TestRun_PartialRowsExcluded(t *testing.T) {
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			return &trends.InterestTable{
				Keywords:       call.keywords,
				PartialFlagged: true,
				Rows: []trends.InterestRow{
					{Values: []float64{10}},
					{Values: []float64{20}},
					{Values: []float64{90}, Partial: true},
				},
			}, nil
		},
	}

	resp, err := NewRunner(client).Run(context.Background(), &Request{
		Keywords:  []string{"a"},
		BatchSize: 5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := resp.Results[0]
	if len(result.Series) != 2 {
		t.Fatalf("Expected partial row excluded, got series %v", result.Series)
	}
	if *result.Interest != 15 {
		t.Errorf("Expected interest 15, got %v", *result.Interest)
	}
}

func TestRun_AllPartialFallsBack(t *testing.T) {
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			return &trends.InterestTable{
				Keywords:       call.keywords,
				PartialFlagged: true,
				Rows: []trends.InterestRow{
					{Values: []float64{10}, Partial: true},
					{Values: []float64{30}, Partial: true},
				},
			}, nil
		},
	}

	resp, err := NewRunner(client).Run(context.Background(), &Request{
		Keywords:  []string{"a"},
		BatchSize: 5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := resp.Results[0]
	if len(result.Series) != 2 {
		t.Fatalf("Expected fallback to unrestricted series, got %v", result.Series)
	}
	if *result.Interest != 20 {
		t.Errorf("Expected interest 20, got %v", *result.Interest)
	}
}

func TestRun_CollaboratorErrorAborts(t *testing.T) {
	queryErr := errors.New("rate limited")
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			if call.keywords[0] == "c" {
				return nil, queryErr
			}
			return tableFor(call.keywords, [][]float64{{50, 50}}), nil
		},
	}

	resp, err := NewRunner(client).Run(context.Background(), &Request{
		Keywords:  []string{"a", "b", "c"},
		BatchSize: 2,
	})
	if !errors.Is(err, queryErr) {
		t.Fatalf("Expected collaborator error, got %v", err)
	}
	if resp != nil {
		t.Error("Expected no partial results on failure")
	}
}

func TestRun_SleepAfterEveryBatch(t *testing.T) {
	client := &fakeClient{
		respond: func(call recordedCall) (*trends.InterestTable, error) {
			return tableFor(call.keywords, [][]float64{{50}}), nil
		},
	}

	req := &Request{
		Keywords:            []string{"a", "b"},
		BatchSize:           1,
		SleepBetweenBatches: 30 * time.Millisecond,
	}

	start := time.Now()
	if _, err := NewRunner(client).Run(context.Background(), req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The sleep runs after the last batch too.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("Expected at least 60ms of throttling, got %v", elapsed)
	}
}

func TestTimeframe(t *testing.T) {
	if tf := Timeframe(12); tf != "today 12-m" {
		t.Errorf("Expected 'today 12-m', got %q", tf)
	}
	if tf := Timeframe(36); tf != "today 36-m" {
		t.Errorf("Expected 'today 36-m', got %q", tf)
	}
	if tf := Timeframe(37); tf != "today 5-y" {
		t.Errorf("Expected 'today 5-y', got %q", tf)
	}
	if tf := Timeframe(48); tf != "today 5-y" {
		t.Errorf("Expected 'today 5-y', got %q", tf)
	}
}
