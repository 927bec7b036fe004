package rulesearch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tolarian/tutor/internal/rules"
)

type fakeSearcher struct {
	gotQuery string
	gotTopK  int
	results  []rules.SearchResult
	err      error
}

func (f *fakeSearcher) Query(ctx context.Context, question string, topK int) ([]rules.SearchResult, error) {
	f.gotQuery = question
	f.gotTopK = topK
	return f.results, f.err
}

func TestSearch_RendersResultsWithRelevance(t *testing.T) {
	f := &fakeSearcher{results: []rules.SearchResult{
		{
			Chunk: rules.Chunk{
				Number:  "704.5k",
				Section: "7. Additional Rules > 704. State-Based Actions",
				Text:    "If a player controls two or more legendary permanents with the same name...",
			},
			Distance: 0.31,
		},
		{
			Chunk:    rules.Chunk{Number: "110.1", Text: "A permanent is a card or token..."},
			Distance: 0.71,
		},
	}}
	h := NewHandlers(f, nil)

	out, err := h.search(context.Background(), `{"query":"legend rule"}`)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.gotQuery != "legend rule" || f.gotTopK != 5 {
		t.Errorf("searcher called with (%q, %d), want (legend rule, 5)", f.gotQuery, f.gotTopK)
	}
	for _, want := range []string{
		"**Rule 704.5k** (high relevance)",
		"*7. Additional Rules > 704. State-Based Actions*",
		"**Rule 110.1** (low relevance)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSearch_ClampsNumResults(t *testing.T) {
	f := &fakeSearcher{}
	h := NewHandlers(f, nil)

	if _, err := h.search(context.Background(), `{"query":"mulligan","num_results":99}`); err != nil {
		t.Fatalf("search: %v", err)
	}
	if f.gotTopK != maxResults {
		t.Errorf("topK = %d, want clamped to %d", f.gotTopK, maxResults)
	}
}

func TestSearch_NilSearcherDegrades(t *testing.T) {
	h := NewHandlers(nil, nil)

	out, err := h.search(context.Background(), `{"query":"priority"}`)
	if err != nil {
		t.Fatalf("a missing index must not be a tool error: %v", err)
	}
	if !strings.Contains(out, "Rules database not available") {
		t.Errorf("output = %q, want a not-available message", out)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := NewHandlers(&fakeSearcher{}, nil)
	if _, err := h.search(context.Background(), `{"query":" "}`); err == nil {
		t.Fatal("expected validation error for empty query")
	}
}

type fakeRecorder struct {
	statuses []string
	elapsed  []time.Duration
}

func (f *fakeRecorder) RecordRulesQuery(_ context.Context, status string, elapsed time.Duration) {
	f.statuses = append(f.statuses, status)
	f.elapsed = append(f.elapsed, elapsed)
}

func TestSearch_RecordsQueryTelemetry(t *testing.T) {
	rec := &fakeRecorder{}
	h := NewHandlers(&fakeSearcher{}, rec)

	if _, err := h.search(context.Background(), `{"query":"banding"}`); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != "ok" {
		t.Fatalf("recorded statuses = %v, want [ok]", rec.statuses)
	}
	if rec.elapsed[0] < 0 {
		t.Errorf("elapsed = %v, want non-negative", rec.elapsed[0])
	}

	h = NewHandlers(&fakeSearcher{err: errors.New("index offline")}, rec)
	if _, err := h.search(context.Background(), `{"query":"banding"}`); err == nil {
		t.Fatal("expected the searcher error to surface")
	}
	if len(rec.statuses) != 2 || rec.statuses[1] != "error" {
		t.Fatalf("recorded statuses = %v, want [ok error]", rec.statuses)
	}
}

func TestSearch_NoTelemetryWithoutQuery(t *testing.T) {
	rec := &fakeRecorder{}

	// Validation failures and the missing-index path never reach the
	// searcher, so no query latency should be recorded.
	h := NewHandlers(&fakeSearcher{}, rec)
	if _, err := h.search(context.Background(), `{"query":""}`); err == nil {
		t.Fatal("expected validation error")
	}
	h = NewHandlers(nil, rec)
	if _, err := h.search(context.Background(), `{"query":"priority"}`); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rec.statuses) != 0 {
		t.Errorf("recorded statuses = %v, want none", rec.statuses)
	}
}

func TestRelevance(t *testing.T) {
	cases := []struct {
		distance float64
		want     string
	}{
		{0.1, "high"},
		{0.449, "high"},
		{0.5, "medium"},
		{0.649, "medium"},
		{0.65, "low"},
		{1.2, "low"},
	}
	for _, c := range cases {
		if got := relevance(c.distance); got != c.want {
			t.Errorf("relevance(%.3f) = %q, want %q", c.distance, got, c.want)
		}
	}
}
