package corebind

import (
	"github.com/relaycore/corebind/internal/metrics"
)

// TelemetrySink is the pluggable counter/observation surface the container
// emits key events through. Concrete exporters (Prometheus, StatsD, ...)
// are out of scope; callers supply an implementation.
type TelemetrySink interface {
	// Increment records delta counts against a named counter.
	Increment(name string, delta int)
	// Observe records a single floating-point sample against name.
	Observe(name string, value float64)
}

// NoopSink discards everything. It is the default when telemetry is
// disabled.
type NoopSink struct{}

// Increment implements TelemetrySink.
func (NoopSink) Increment(string, int) {}

// Observe implements TelemetrySink.
func (NoopSink) Observe(string, float64) {}

// metric names the container emits during normal operation.
const (
	metricResolveCount       = "resolve.count"
	metricResolveMiss        = "resolve.miss"
	metricResolveError       = "resolve.error"
	metricAnalysisCount      = "analysis.count"
	metricScopeBegin         = "scope.begin"
	metricScopeEnd           = "scope.end"
	metricBootstrapCompleted = "bootstrap_completed"
)

// NewSamplingSink wraps sink so that Observe calls are dropped according to
// samplingRate (in [0,1]) while Increment calls always pass through.
// Sampling is applied in the collector, never at emission sites.
func NewSamplingSink(sink TelemetrySink, samplingRate float64) TelemetrySink {
	return metrics.NewSamplingCollector(sinkAdapter{sink}, samplingRate)
}

// sinkAdapter lets a root-package TelemetrySink satisfy internal/metrics.Sink
// without the internal package importing the root package.
type sinkAdapter struct{ TelemetrySink }

var _ metrics.Sink = sinkAdapter{}

// Summary is a reference in-process TelemetrySink reporting p50/p90/p99 per
// metric name, suitable for tests and small deployments that don't want a
// full metrics server.
type Summary struct {
	inner *metrics.Summary
}

// NewSummary returns an empty Summary sink.
func NewSummary() *Summary {
	return &Summary{inner: metrics.NewSummary()}
}

// Increment implements TelemetrySink.
func (s *Summary) Increment(name string, delta int) { s.inner.Increment(name, delta) }

// Observe implements TelemetrySink.
func (s *Summary) Observe(name string, value float64) { s.inner.Observe(name, value) }

// Count returns the current counter value for name.
func (s *Summary) Count(name string) int { return s.inner.Count(name) }

// Quantiles returns p50, p90, p99 for name's observed samples.
func (s *Summary) Quantiles(name string) (p50, p90, p99 float64) { return s.inner.Quantiles(name) }
