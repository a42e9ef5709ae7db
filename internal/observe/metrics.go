// Package observe provides application-wide observability primitives for
// memocut: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all memocut metrics.
const meterName = "github.com/memocut/memocut"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// EditDuration tracks segment edit latency. Use with attribute:
	//   attribute.String("op", "trim"|"cut"|"remove_ranges")
	EditDuration metric.Float64Histogram

	// AnalysisDuration tracks full-file silence analysis latency.
	AnalysisDuration metric.Float64Histogram

	// --- Counters ---

	// EditOps counts edit operations. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	EditOps metric.Int64Counter

	// SilenceRanges counts silence ranges produced by analysis runs.
	SilenceRanges metric.Int64Counter

	// SkipJumps counts forward seeks issued by the skip controller.
	SkipJumps metric.Int64Counter

	// --- Gauges ---

	// ActiveEdits tracks edits currently in flight across all memos.
	ActiveEdits metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// batch edits on recordings up to a few hours long.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EditDuration, err = m.Float64Histogram("memocut.edit.duration",
		metric.WithDescription("Latency of segment edit operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("memocut.analysis.duration",
		metric.WithDescription("Latency of full-file silence analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.EditOps, err = m.Int64Counter("memocut.edit.ops",
		metric.WithDescription("Total edit operations by op and status."),
	); err != nil {
		return nil, err
	}
	if met.SilenceRanges, err = m.Int64Counter("memocut.silence.ranges",
		metric.WithDescription("Total silence ranges produced by analysis."),
	); err != nil {
		return nil, err
	}
	if met.SkipJumps, err = m.Int64Counter("memocut.skip.jumps",
		metric.WithDescription("Total forward seeks issued by the skip controller."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveEdits, err = m.Int64UpDownCounter("memocut.active_edits",
		metric.WithDescription("Number of edits currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("memocut.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordAnalysis is a convenience method that records one analysis run:
// its duration and the number of ranges it produced.
func (m *Metrics) RecordAnalysis(ctx context.Context, seconds float64, ranges int, status string) {
	m.AnalysisDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)))
	if ranges > 0 {
		m.SilenceRanges.Add(ctx, int64(ranges))
	}
}
