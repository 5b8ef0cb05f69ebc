package batch

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeRequest_Defaults(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"keywords":["go"]}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if req.LookbackMonths != 12 {
		t.Errorf("Expected default lookbackMonths 12, got %d", req.LookbackMonths)
	}
	if req.Geo != "" {
		t.Errorf("Expected default geo empty, got %q", req.Geo)
	}
	if req.BatchSize != 5 {
		t.Errorf("Expected default batchSize 5, got %d", req.BatchSize)
	}
	if req.SleepBetweenBatches != time.Second {
		t.Errorf("Expected default sleep 1s, got %v", req.SleepBetweenBatches)
	}
	if req.TZ != 360 {
		t.Errorf("Expected default tz 360, got %d", req.TZ)
	}
	if req.Proxy != "" {
		t.Errorf("Expected no proxy, got %q", req.Proxy)
	}
}

func TestDecodeRequest_ExplicitValues(t *testing.T) {
	input := `{
		"keywords": ["a", "b"],
		"lookbackMonths": 6,
		"geo": "US",
		"batchSize": 2,
		"sleepBetweenBatchesMs": 250,
		"tz": 0,
		"proxy": "http://proxy.local:3128"
	}`

	req, err := DecodeRequest(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if req.LookbackMonths != 6 {
		t.Errorf("Expected lookbackMonths 6, got %d", req.LookbackMonths)
	}
	if req.Geo != "US" {
		t.Errorf("Expected geo US, got %q", req.Geo)
	}
	if req.BatchSize != 2 {
		t.Errorf("Expected batchSize 2, got %d", req.BatchSize)
	}
	if req.SleepBetweenBatches != 250*time.Millisecond {
		t.Errorf("Expected sleep 250ms, got %v", req.SleepBetweenBatches)
	}
	if req.TZ != 0 {
		t.Errorf("Expected tz 0, got %d", req.TZ)
	}
	if req.Proxy != "http://proxy.local:3128" {
		t.Errorf("Expected proxy preserved, got %q", req.Proxy)
	}
}

func TestDecodeRequest_Floors(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(`{"keywords":["a"],"batchSize":0,"sleepBetweenBatchesMs":-100}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if req.BatchSize != 1 {
		t.Errorf("Expected batchSize floored to 1, got %d", req.BatchSize)
	}
	if req.SleepBetweenBatches != 0 {
		t.Errorf("Expected sleep floored to 0, got %v", req.SleepBetweenBatches)
	}
}

func TestDecodeRequest_InvalidJSON(t *testing.T) {
	if _, err := DecodeRequest(strings.NewReader(`{not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestDecodeRequest_KeywordsNotAList(t *testing.T) {
	if _, err := DecodeRequest(strings.NewReader(`{"keywords":"go"}`)); err == nil {
		t.Error("Expected error for non-list keywords field")
	}
}
