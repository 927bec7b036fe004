package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValueWith returns the int64 sum data point carrying the given attribute.
func sumValueWith(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"tutor.tool_execution.duration", m.ToolExecutionDuration},
		{"tutor.upstream.request.duration", m.UpstreamRequestDuration},
		{"tutor.upstream.pacer_wait.duration", m.PacerWaitDuration},
		{"tutor.rules.query.duration", m.RulesQueryDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordToolCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "scryfall_search_cards", "ok", 120*time.Millisecond)
	m.RecordToolCall(ctx, "scryfall_search_cards", "ok", 80*time.Millisecond)
	m.RecordToolCall(ctx, "spellbook_get_combo", "error", 10*time.Millisecond)

	rm := collect(t, reader)
	if got := sumValueWith(t, rm, "tutor.tool.calls", "status", "ok"); got != 2 {
		t.Errorf("ok tool calls = %d, want 2", got)
	}
	if got := sumValueWith(t, rm, "tutor.tool.calls", "status", "error"); got != 1 {
		t.Errorf("error tool calls = %d, want 1", got)
	}
}

func TestRecordRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, "scryfall", "GET", 200, 50*time.Millisecond)
	m.RecordRequest(ctx, "scryfall", "GET", 200, 70*time.Millisecond)
	// Transport failure before any response arrives.
	m.RecordRequest(ctx, "spellbook", "POST", 0, 5*time.Millisecond)

	rm := collect(t, reader)
	if got := sumValueWith(t, rm, "tutor.upstream.requests", "status", "200"); got != 2 {
		t.Errorf("200 requests = %d, want 2", got)
	}
	if got := sumValueWith(t, rm, "tutor.upstream.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
}

func TestRecordPacerWait(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordPacerWait(context.Background(), "scryfall", 90*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "tutor.upstream.pacer_wait.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
		t.Fatal("pacer wait not recorded")
	}
}

func TestRecordRulesQuery(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRulesQuery(ctx, "ok", 40*time.Millisecond)
	m.RecordRulesQuery(ctx, "error", 5*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "tutor.rules.query.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 2 {
		t.Errorf("recorded samples = %d, want 2", total)
	}
}

func TestAgentMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveAgentRuns.Add(ctx, 1)
	m.ActiveAgentRuns.Add(ctx, 1)
	m.ActiveAgentRuns.Add(ctx, -1)
	m.RecordAgentConversation(ctx, "ok")

	rm := collect(t, reader)
	met := findMetric(rm, "tutor.agent.active_runs")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Error("active runs gauge should net out to 1")
	}
	if got := sumValueWith(t, rm, "tutor.agent.conversations", "status", "ok"); got != 1 {
		t.Errorf("conversations = %d, want 1", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.HTTPRequestDuration.Record(context.Background(), 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "tutor.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
		t.Fatal("no data points recorded")
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
