// Package observe provides logging and OpenTelemetry metrics for utter.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported for
// Prometheus scraping via [InitProvider]. Tests should use [NewMetrics] with a
// ManualReader-backed provider instead of the global one.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all utter metrics.
const meterName = "github.com/emmett/utter"

// Metrics holds the metric instruments recorded by listening sessions.
// All fields are safe for concurrent use.
type Metrics struct {
	// Sessions counts finished sessions. Attribute: outcome.
	Sessions metric.Int64Counter

	// Frames counts classified frames. Attribute: result.
	Frames metric.Int64Counter

	// DroppedBytes counts bytes evicted from the ring buffer on overflow.
	DroppedBytes metric.Int64Counter

	// UtteranceDuration tracks the audio length of persisted utterances.
	UtteranceDuration metric.Float64Histogram

	// PersistDuration tracks how long the sink takes to write an utterance.
	PersistDuration metric.Float64Histogram

	// ActiveSessions tracks sessions currently listening.
	ActiveSessions metric.Int64UpDownCounter
}

// utteranceBuckets covers the 0-15s default recording window.
var utteranceBuckets = []float64{0.25, 0.5, 1, 2, 3, 5, 8, 10, 15, 30}

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Sessions, err = m.Int64Counter("utter.sessions",
		metric.WithDescription("Finished listening sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("utter.frames",
		metric.WithDescription("Classified frames by result."),
	); err != nil {
		return nil, err
	}
	if met.DroppedBytes, err = m.Int64Counter("utter.ringbuffer.dropped",
		metric.WithDescription("Bytes evicted from the capture ring buffer."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("utter.utterance.duration",
		metric.WithDescription("Audio length of persisted utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PersistDuration, err = m.Float64Histogram("utter.persist.duration",
		metric.WithDescription("Latency of writing an utterance to the sink."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("utter.active_sessions",
		metric.WithDescription("Sessions currently listening."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance backed by the global
// meter provider. Panics if instrument creation fails.
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

// RecordSession counts a finished session.
func (m *Metrics) RecordSession(ctx context.Context, outcome string) {
	m.Sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordFrame counts one classified frame.
func (m *Metrics) RecordFrame(ctx context.Context, result string) {
	m.Frames.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordDropped adds evicted bytes; zero is ignored.
func (m *Metrics) RecordDropped(ctx context.Context, n uint64) {
	if n == 0 {
		return
	}
	m.DroppedBytes.Add(ctx, int64(n))
}

// RecordUtterance records a persisted utterance and the time spent writing it.
func (m *Metrics) RecordUtterance(ctx context.Context, length, persist time.Duration) {
	m.UtteranceDuration.Record(ctx, length.Seconds())
	m.PersistDuration.Record(ctx, persist.Seconds())
}
