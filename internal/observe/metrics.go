// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, and trace-aware structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/tolarian/tutor"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ToolExecutionDuration tracks tool handler latency end to end,
	// upstream calls included.
	ToolExecutionDuration metric.Float64Histogram

	// UpstreamRequestDuration tracks HTTP latency against the card and
	// combo APIs, by service.
	UpstreamRequestDuration metric.Float64Histogram

	// PacerWaitDuration tracks how long requests sat in the rate-limit
	// pacer before starting. Sustained growth means the server is being
	// driven faster than the upstream allows.
	PacerWaitDuration metric.Float64Histogram

	// RulesQueryDuration tracks rules index search latency, embedding
	// included.
	RulesQueryDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// UpstreamRequests counts upstream API calls. Use with attributes:
	//   attribute.String("service", ...), attribute.String("method", ...),
	//   attribute.String("status", ...)
	UpstreamRequests metric.Int64Counter

	// AgentConversations counts chat-driven agent runs by outcome.
	AgentConversations metric.Int64Counter

	// ActiveAgentRuns tracks agent conversations currently in flight.
	ActiveAgentRuns metric.Int64UpDownCounter

	// HTTPRequestDuration tracks ops endpoint (/metrics, /healthz) request
	// time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// everything from a pacer wait to a slow decklist parse.
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
	if met.ToolExecutionDuration, err = m.Float64Histogram("tutor.tool_execution.duration",
		metric.WithDescription("Latency of tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UpstreamRequestDuration, err = m.Float64Histogram("tutor.upstream.request.duration",
		metric.WithDescription("Latency of upstream API requests by service."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PacerWaitDuration, err = m.Float64Histogram("tutor.upstream.pacer_wait.duration",
		metric.WithDescription("Time requests spent waiting in the rate-limit pacer."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RulesQueryDuration, err = m.Float64Histogram("tutor.rules.query.duration",
		metric.WithDescription("Latency of rules index searches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ToolCalls, err = m.Int64Counter("tutor.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamRequests, err = m.Int64Counter("tutor.upstream.requests",
		metric.WithDescription("Total upstream API requests by service, method, and status."),
	); err != nil {
		return nil, err
	}
	if met.AgentConversations, err = m.Int64Counter("tutor.agent.conversations",
		metric.WithDescription("Total chat agent conversations by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveAgentRuns, err = m.Int64UpDownCounter("tutor.agent.active_runs",
		metric.WithDescription("Number of agent conversations currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("tutor.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordToolCall records one tool invocation with its outcome and latency.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		Attr("tool", tool),
		Attr("status", status),
	)
	m.ToolCalls.Add(ctx, 1, attrs)
	m.ToolExecutionDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordAgentConversation records one completed chat agent run.
func (m *Metrics) RecordAgentConversation(ctx context.Context, status string) {
	m.AgentConversations.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}
