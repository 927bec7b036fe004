// Package spellbook provides a read-only client for the Commander Spellbook
// combo database API. Lookups and searches use GET; combo matching against a
// card pool and decklist parsing use POST endpoints with JSON bodies.
package spellbook

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tolarian/tutor/internal/upstream"
)

const (
	// DefaultBaseURL is the public Commander Spellbook backend.
	DefaultBaseURL = "https://backend.commanderspellbook.com"

	// defaultTimeout is generous because find-my-combos against a full
	// decklist can take a while server-side.
	defaultTimeout = 60 * time.Second
)

// Option is a functional option for configuring the Client.
type Option func(*settings)

type settings struct {
	baseURL  string
	recorder upstream.Recorder
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithRecorder attaches a telemetry recorder to the underlying pipeline.
func WithRecorder(r upstream.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// Client is a Commander Spellbook API client. Safe for concurrent use.
// Spellbook publishes no rate-limit guidance, so no pacer is attached.
type Client struct {
	c *upstream.Client
}

// New creates a Spellbook client with the given options.
func New(opts ...Option) *Client {
	s := settings{baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(&s)
	}
	clientOpts := []upstream.ClientOption{upstream.WithTimeout(defaultTimeout)}
	if s.recorder != nil {
		clientOpts = append(clientOpts, upstream.WithRecorder(s.recorder))
	}
	return &Client{c: upstream.NewClient("spellbook", s.baseURL, clientOpts...)}
}

// SearchVariants searches combos by free text or Spellbook query syntax
// (e.g. `card:"Thassa's Oracle"`, `result:infinite`). identity optionally
// filters by WUBRG color identity letters; limit caps the page size.
func (cl *Client) SearchVariants(ctx context.Context, query, identity string, limit int) (*VariantList, error) {
	if query == "" {
		return nil, fmt.Errorf("spellbook: search query must not be empty")
	}
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if identity != "" {
		q.Set("id", strings.ToUpper(identity))
	}
	var list VariantList
	if err := cl.c.GetJSON(ctx, "/variants", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Variant fetches a single combo by its Spellbook ID.
func (cl *Client) Variant(ctx context.Context, id string) (*Variant, error) {
	if id == "" {
		return nil, fmt.Errorf("spellbook: combo id must not be empty")
	}
	var v Variant
	if err := cl.c.GetJSON(ctx, "/variants/"+url.PathEscape(id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindMyCombos asks the API which combos the supplied card pool can play.
// Included combos need only cards from the pool; almost-included combos are
// missing exactly one card.
func (cl *Client) FindMyCombos(ctx context.Context, cards []string) (*ComboMatches, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("spellbook: card list must not be empty")
	}
	var env findMyCombosEnvelope
	if err := cl.c.PostJSON(ctx, "/find-my-combos/", map[string]any{"cards": cards}, &env); err != nil {
		return nil, err
	}
	return &env.Results, nil
}

// CardListFromURL resolves a decklist URL (Moxfield, Archidekt, Deckstats,
// ...) into a flat list of card names.
func (cl *Client) CardListFromURL(ctx context.Context, deckURL string) ([]string, error) {
	if deckURL == "" {
		return nil, fmt.Errorf("spellbook: deck url must not be empty")
	}
	var env cardListEnvelope
	if err := cl.c.PostJSON(ctx, "/card-list-from-url/", map[string]any{"url": deckURL}, &env); err != nil {
		return nil, err
	}
	return env.names(), nil
}

// CardListFromText parses a pasted decklist (one card per line, quantity
// prefix optional) into a flat list of card names.
func (cl *Client) CardListFromText(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("spellbook: decklist text must not be empty")
	}
	var env cardListEnvelope
	if err := cl.c.PostJSON(ctx, "/card-list-from-text/", map[string]any{"text": text}, &env); err != nil {
		return nil, err
	}
	return env.names(), nil
}

// EstimateBracket estimates the Commander bracket (power level 1–4) of the
// supplied card pool and reports the combos driving the estimate.
func (cl *Client) EstimateBracket(ctx context.Context, cards []string) (*BracketEstimate, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("spellbook: card list must not be empty")
	}
	var est BracketEstimate
	if err := cl.c.PostJSON(ctx, "/estimate-bracket/", map[string]any{"cards": cards}, &est); err != nil {
		return nil, err
	}
	return &est, nil
}

// names flattens the decoded deck cards, dropping empty entries.
func (e *cardListEnvelope) names() []string {
	out := make([]string, 0, len(e.Cards))
	for _, c := range e.Cards {
		if name := strings.TrimSpace(c.name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
