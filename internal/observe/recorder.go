package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RecordRequest records one completed upstream HTTP request. A status of 0
// means the request failed before any response arrived. This method (with
// [Metrics.RecordPacerWait]) lets a *Metrics plug directly into the upstream
// HTTP pipeline as its telemetry sink.
func (m *Metrics) RecordRequest(ctx context.Context, service, method string, status int, elapsed time.Duration) {
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	attrs := metric.WithAttributes(
		Attr("service", service),
		Attr("method", method),
		Attr("status", statusLabel),
	)
	m.UpstreamRequests.Add(ctx, 1, attrs)
	m.UpstreamRequestDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(Attr("service", service)),
	)
}

// RecordPacerWait records time a request spent blocked in the rate-limit
// pacer before it was allowed to start.
func (m *Metrics) RecordPacerWait(ctx context.Context, service string, waited time.Duration) {
	m.PacerWaitDuration.Record(ctx, waited.Seconds(),
		metric.WithAttributes(Attr("service", service)),
	)
}

// RecordRulesQuery records one rules index search, embedding included.
func (m *Metrics) RecordRulesQuery(ctx context.Context, status string, elapsed time.Duration) {
	m.RulesQueryDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(Attr("status", status)),
	)
}
