// Package observe provides the application's observability primitives:
// OpenTelemetry metric instruments and a Prometheus exporter bridge so the
// counters can be scraped from the standard /metrics endpoint.
//
// A nil *Metrics is valid and records nothing, so wiring code can skip the
// provider setup in tests.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxtela metrics.
const meterName = "github.com/voxtela/voxtela"

// Metrics holds all metric instruments. All fields are safe for concurrent
// use; the underlying OTel types handle their own synchronisation.
type Metrics struct {
	// SynthesisDuration tracks end-to-end synthesis latency per engine.
	SynthesisDuration metric.Float64Histogram

	// EngineRequests counts engine attempts. Attributes: engine, status.
	EngineRequests metric.Int64Counter

	// CacheLookups counts cache gets. Attribute: result (hit|miss).
	CacheLookups metric.Int64Counter

	// MessagesProcessed counts inbound messages. Attribute: kind.
	MessagesProcessed metric.Int64Counter

	// ActiveRequests tracks in-flight TTS requests.
	ActiveRequests metric.Int64UpDownCounter
}

// latencyBuckets defines histogram boundaries (seconds) sized for network
// synthesis latencies.
var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30}

// NewMetrics creates a fully initialised [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.SynthesisDuration, err = m.Float64Histogram("voxtela.synthesis.duration",
		metric.WithDescription("End-to-end synthesis latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EngineRequests, err = m.Int64Counter("voxtela.engine.requests",
		metric.WithDescription("Engine synthesis attempts by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("voxtela.cache.lookups",
		metric.WithDescription("Audio cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.MessagesProcessed, err = m.Int64Counter("voxtela.messages.processed",
		metric.WithDescription("Inbound messages by kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRequests, err = m.Int64UpDownCounter("voxtela.requests.active",
		metric.WithDescription("TTS requests currently in flight."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordSynthesis notes one routed synthesis outcome.
func (m *Metrics) RecordSynthesis(ctx context.Context, engineName string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("engine", engineName),
		attribute.String("status", status),
	)
	m.EngineRequests.Add(ctx, 1, attrs)
	m.SynthesisDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordCacheLookup notes one cache get.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordMessage notes one inbound message.
func (m *Metrics) RecordMessage(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.MessagesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RequestStarted marks one request in flight; call the returned func when it
// completes.
func (m *Metrics) RequestStarted(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	m.ActiveRequests.Add(ctx, 1)
	return func() { m.ActiveRequests.Add(ctx, -1) }
}
