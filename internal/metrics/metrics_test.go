package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	increments []string
	observes   []string
}

func (s *recordingSink) Increment(name string, delta int) {
	s.increments = append(s.increments, name)
}

func (s *recordingSink) Observe(name string, value float64) {
	s.observes = append(s.observes, name)
}

func TestSamplingCollectorAlwaysForwardsIncrement(t *testing.T) {
	sink := &recordingSink{}
	c := NewSamplingCollector(sink, 0.0)
	for i := 0; i < 5; i++ {
		c.Increment("x", 1)
	}
	require.Len(t, sink.increments, 5)
}

func TestSamplingCollectorFullRateAlwaysObserves(t *testing.T) {
	sink := &recordingSink{}
	c := NewSamplingCollector(sink, 1.0)
	for i := 0; i < 5; i++ {
		c.Observe("latency", float64(i))
	}
	require.Len(t, sink.observes, 5)
}

func TestSamplingCollectorClampsRate(t *testing.T) {
	sink := &recordingSink{}
	c := NewSamplingCollector(sink, 5.0)
	require.Equal(t, 1.0, c.samplingRate)

	c2 := NewSamplingCollector(sink, -1.0)
	require.Equal(t, 0.0, c2.samplingRate)
}

func TestSummaryQuantilesEmptyWithoutSamples(t *testing.T) {
	s := NewSummary()
	p50, p90, p99 := s.Quantiles("missing")
	require.Zero(t, p50)
	require.Zero(t, p90)
	require.Zero(t, p99)
}

func TestSummaryNamesSorted(t *testing.T) {
	s := NewSummary()
	s.Increment("zeta", 1)
	s.Observe("alpha", 1.0)
	require.Equal(t, []string{"alpha", "zeta"}, s.Names())
}
