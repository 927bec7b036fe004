// Package rulesearch provides the "mtg_rules_search" tool: semantic search
// over the embedded Comprehensive Rules index.
package rulesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tolarian/tutor/internal/rules"
	"github.com/tolarian/tutor/internal/tools"
)

const (
	defaultResults = 5
	maxResults     = 15
)

// Relevance thresholds on cosine distance. Tuned against
// text-embedding-3-small; a different model shifts the distance range.
const (
	highRelevance   = 0.45
	mediumRelevance = 0.65
)

// Searcher is the slice of the rules index this tool needs.
type Searcher interface {
	Query(ctx context.Context, question string, topK int) ([]rules.SearchResult, error)
}

// Recorder receives rules query telemetry. *observe.Metrics satisfies it.
type Recorder interface {
	RecordRulesQuery(ctx context.Context, status string, elapsed time.Duration)
}

type searchArgs struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results,omitempty"`
}

// Handlers holds the rules search handler. A nil searcher is valid and makes
// the tool report that the index has not been ingested, so the server runs
// fine without a rules database.
type Handlers struct {
	searcher Searcher
	recorder Recorder
}

// NewHandlers creates rules search handlers over searcher, which may be nil.
// rec may be nil to disable telemetry.
func NewHandlers(searcher Searcher, rec Recorder) *Handlers {
	return &Handlers{searcher: searcher, recorder: rec}
}

func (h *Handlers) search(ctx context.Context, args string) (string, error) {
	var a searchArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("rulesearch: failed to parse arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", fmt.Errorf("rulesearch: query must not be empty")
	}
	if h.searcher == nil {
		return "**Rules database not available.** The Comprehensive Rules index has not been ingested on this server; card rulings via scryfall_get_rulings still work.", nil
	}

	topK := a.NumResults
	switch {
	case topK <= 0:
		topK = defaultResults
	case topK > maxResults:
		topK = maxResults
	}

	start := time.Now()
	results, err := h.searcher.Query(ctx, a.Query, topK)
	if h.recorder != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		h.recorder.RecordRulesQuery(ctx, status, time.Since(start))
	}
	if err != nil {
		return "", fmt.Errorf("rulesearch: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("**No rules found** matching %q.", a.Query), nil
	}

	lines := []string{fmt.Sprintf("## Rules matching %q", a.Query), ""}
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("**Rule %s** (%s relevance)", r.Chunk.Number, relevance(r.Distance)))
		if r.Chunk.Section != "" {
			lines = append(lines, "*"+r.Chunk.Section+"*")
		}
		lines = append(lines, r.Chunk.Text, "")
	}
	return strings.Join(lines, "\n"), nil
}

// relevance buckets a cosine distance into a reader-friendly label.
func relevance(distance float64) string {
	switch {
	case distance < highRelevance:
		return "high"
	case distance < mediumRelevance:
		return "medium"
	}
	return "low"
}

// Tools returns the rules search tool ready for registration. rec may be
// nil to disable telemetry.
func Tools(searcher Searcher, rec Recorder) []tools.Tool {
	h := NewHandlers(searcher, rec)
	return []tools.Tool{
		{
			Definition: tools.Definition{
				Name:        "mtg_rules_search",
				Title:       "Search MTG Comprehensive Rules",
				Description: "Semantic search over the Magic: The Gathering Comprehensive Rules. Ask about game mechanics in natural language, e.g. 'how does the legend rule work' or 'when do state-based actions happen'.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Natural-language question about the game rules.",
						},
						"num_results": map[string]any{
							"type":        "integer",
							"description": "Number of rules to return (1-15, default 5).",
						},
					},
					"required": []string{"query"},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  false, // local index, no external calls
			},
			Handler: h.search,
		},
	}
}
