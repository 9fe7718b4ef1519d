// Package metrics implements append-only recording of per-attempt request
// metrics and on-demand summarization. Fully in-memory; Record never blocks
// on I/O.
package metrics

import (
	"slices"
	"sync"
	"time"

	"mcpbox/internal/domain"
)

// Collector owns the ordered sequence of request metrics. It is safe for
// concurrent use by multiple goroutines.
type Collector struct {
	mu      sync.RWMutex
	records []domain.RequestMetric
}

func NewCollector() *Collector {
	return &Collector{}
}

// Record appends a metric to the sequence. Every attempt is its own entry;
// no deduplication.
func (c *Collector) Record(m domain.RequestMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, m)
}

// Len returns the number of recorded metrics.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Records returns a copy of the recorded sequence in record order.
func (c *Collector) Records() []domain.RequestMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.records)
}

// Reset clears the sequence. Only invoked by explicit user action, never
// automatically.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}

// Summary recomputes the aggregate view from the current sequence. It is
// correct for the empty sequence: rates report as zero rather than failing on
// division by zero.
func (c *Collector) Summary() domain.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := domain.Summary{
		TotalRequests: len(c.records),
	}
	if len(c.records) == 0 {
		return s
	}

	var total time.Duration
	durations := make([]time.Duration, 0, len(c.records))

	for _, m := range c.records {
		if m.Success {
			s.Successful++
		} else {
			s.Failed++
			if m.ErrorKind != "" {
				if s.ErrorCounts == nil {
					s.ErrorCounts = make(map[string]int)
				}
				s.ErrorCounts[m.ErrorKind]++
			}
		}

		total += m.Duration
		durations = append(durations, m.Duration)
		if m.Duration > s.MaxDuration {
			s.MaxDuration = m.Duration
		}
	}

	s.SuccessRate = float64(s.Successful) / float64(s.TotalRequests)
	s.AvgDuration = total / time.Duration(s.TotalRequests)

	slices.Sort(durations)
	s.P95Duration = durations[p95Index(len(durations))]

	return s
}

// p95Index returns the index of the 95th percentile value (nearest-rank) in a
// sorted slice of length n.
func p95Index(n int) int {
	idx := (n*95 + 99) / 100 // ceil(n * 0.95)
	if idx < 1 {
		idx = 1
	}
	return idx - 1
}
