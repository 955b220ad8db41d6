package observability

import (
	"errors"
	"testing"
	"time"
)

func TestOpStats_RecordAndSummaries(t *testing.T) {
	stats := NewOpStats()

	stats.Record("set_item", 2*time.Millisecond, nil)
	stats.Record("set_item", 4*time.Millisecond, nil)
	stats.Record("set_item", 6*time.Millisecond, errors.New("write failed"))
	stats.Record("get_item", 1*time.Millisecond, nil)

	summaries := stats.Summaries()
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	// Sorted by count descending: set_item first.
	top := summaries[0]
	if top.Op != "set_item" {
		t.Fatalf("top op = %q, want set_item", top.Op)
	}
	if top.Count != 3 {
		t.Errorf("count = %d, want 3", top.Count)
	}
	if top.Errors != 1 {
		t.Errorf("errors = %d, want 1", top.Errors)
	}
	if top.AvgMs != 4 {
		t.Errorf("avg = %v ms, want 4", top.AvgMs)
	}
	if top.MaxMs != 6 {
		t.Errorf("max = %v ms, want 6", top.MaxMs)
	}

	if summaries[1].Op != "get_item" || summaries[1].Count != 1 {
		t.Errorf("second summary = %+v, want get_item count 1", summaries[1])
	}
}

func TestOpStats_SampleWindowBounded(t *testing.T) {
	stats := NewOpStats()

	for i := 0; i < maxSamples*3; i++ {
		stats.Record("list_items", time.Millisecond, nil)
	}

	summaries := stats.Summaries()
	if summaries[0].Count != int64(maxSamples*3) {
		t.Errorf("count = %d, want %d", summaries[0].Count, maxSamples*3)
	}
	if summaries[0].P95Ms != 1 {
		t.Errorf("p95 = %v ms, want 1", summaries[0].P95Ms)
	}
}

func TestOpStats_EmptySummaries(t *testing.T) {
	stats := NewOpStats()
	if got := stats.Summaries(); len(got) != 0 {
		t.Errorf("summaries of empty tracker = %v, want none", got)
	}
}
