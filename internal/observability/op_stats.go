// Package observability provides operation statistics tracking for the
// table store, surfaced through the HTTP stats endpoint.
package observability

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the per-operation latency sample window.
const maxSamples = 256

// OpStats tracks call counts, error counts, and latency per operation.
type OpStats struct {
	mu  sync.RWMutex
	ops map[string]*opRecord
}

type opRecord struct {
	count   int64
	errors  int64
	total   time.Duration
	max     time.Duration
	samples []time.Duration // ring of recent latencies
	next    int
}

// OpSummary is a read-only snapshot of one operation's statistics.
type OpSummary struct {
	Op     string  `json:"op"`
	Count  int64   `json:"count"`
	Errors int64   `json:"errors"`
	AvgMs  float64 `json:"avg_ms"`
	MaxMs  float64 `json:"max_ms"`
	P95Ms  float64 `json:"p95_ms"`
}

// NewOpStats creates an empty statistics tracker.
func NewOpStats() *OpStats {
	return &OpStats{
		ops: make(map[string]*opRecord),
	}
}

// Record adds one observation for the named operation.
// This method is O(1) and thread-safe.
func (s *OpStats) Record(op string, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.ops[op]
	if !exists {
		rec = &opRecord{}
		s.ops[op] = rec
	}

	rec.count++
	if err != nil {
		rec.errors++
	}
	rec.total += d
	if d > rec.max {
		rec.max = d
	}
	if len(rec.samples) < maxSamples {
		rec.samples = append(rec.samples, d)
	} else {
		rec.samples[rec.next] = d
		rec.next = (rec.next + 1) % maxSamples
	}
}

// Summaries returns a copy of the current statistics, sorted by call count
// descending.
func (s *OpStats) Summaries() []OpSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]OpSummary, 0, len(s.ops))
	for op, rec := range s.ops {
		summary := OpSummary{
			Op:     op,
			Count:  rec.count,
			Errors: rec.errors,
			MaxMs:  float64(rec.max) / float64(time.Millisecond),
		}
		if rec.count > 0 {
			summary.AvgMs = float64(rec.total) / float64(rec.count) / float64(time.Millisecond)
		}
		summary.P95Ms = percentile(rec.samples, 0.95)
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Count != summaries[j].Count {
			return summaries[i].Count > summaries[j].Count
		}
		return summaries[i].Op < summaries[j].Op
	})
	return summaries
}

// percentile computes the p-th percentile of the sample window in
// milliseconds. Samples are copied so the caller's ring stays intact.
func percentile(samples []time.Duration, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * p)
	return float64(sorted[idx]) / float64(time.Millisecond)
}
