// Package metrics provides a sampling telemetry collector and a reference
// in-process summary sink built on streaming quantile estimation.
package metrics

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/beorn7/perks/quantile"
)

// Sink is the minimal surface a SamplingCollector forwards to: a counter
// increment and a float observation, matching the container's own
// TelemetrySink contract without importing the root package (avoiding an
// import cycle).
type Sink interface {
	Increment(name string, delta int)
	Observe(name string, value float64)
}

// SamplingCollector wraps a Sink, dropping observations (never counters)
// according to a sampling rate before forwarding them.
type SamplingCollector struct {
	sink         Sink
	samplingRate float64
}

// NewSamplingCollector returns a collector forwarding to sink. samplingRate
// is clamped to [0,1].
func NewSamplingCollector(sink Sink, samplingRate float64) *SamplingCollector {
	if samplingRate < 0 {
		samplingRate = 0
	}
	if samplingRate > 1 {
		samplingRate = 1
	}
	return &SamplingCollector{sink: sink, samplingRate: samplingRate}
}

// Increment always forwards; sampling applies only to observations.
func (c *SamplingCollector) Increment(name string, delta int) {
	c.sink.Increment(name, delta)
}

// Observe forwards value to the underlying sink with probability
// samplingRate.
func (c *SamplingCollector) Observe(name string, value float64) {
	if c.samplingRate >= 1 || rand.Float64() < c.samplingRate {
		c.sink.Observe(name, value)
	}
}

// Summary is a reference in-process Sink that reports p50/p90/p99 per
// metric name using a streaming quantile estimator, without a metrics
// server.
type Summary struct {
	mu      sync.Mutex
	counts  map[string]int
	streams map[string]*quantile.Stream
}

// NewSummary returns an empty Summary sink.
func NewSummary() *Summary {
	return &Summary{
		counts:  make(map[string]int),
		streams: make(map[string]*quantile.Stream),
	}
}

// Increment implements Sink.
func (s *Summary) Increment(name string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name] += delta
}

// Observe implements Sink.
func (s *Summary) Observe(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream, ok := s.streams[name]
	if !ok {
		stream = quantile.NewTargeted(map[float64]float64{
			0.5:  0.01,
			0.9:  0.01,
			0.99: 0.001,
		})
		s.streams[name] = stream
	}
	stream.Insert(value)
}

// Count returns the current counter value for name.
func (s *Summary) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

// Quantiles returns p50, p90, p99 for name's observed samples. Returns
// zeros when no samples were recorded.
func (s *Summary) Quantiles(name string) (p50, p90, p99 float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream, ok := s.streams[name]
	if !ok {
		return 0, 0, 0
	}
	return stream.Query(0.5), stream.Query(0.9), stream.Query(0.99)
}

// Names returns every metric name observed so far, sorted for deterministic
// reporting.
func (s *Summary) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for n := range s.counts {
		seen[n] = true
	}
	for n := range s.streams {
		seen[n] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
