// Package scryfall provides a read-only client for the Scryfall card
// database API. Scryfall asks clients to identify themselves with a
// User-Agent header and to leave at least ~100ms between requests; the
// client carries both requirements via the shared upstream pipeline.
package scryfall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/tolarian/tutor/internal/upstream"
)

const (
	// DefaultBaseURL is the public Scryfall API endpoint.
	DefaultBaseURL = "https://api.scryfall.com"

	// DefaultUserAgent identifies this client to Scryfall.
	DefaultUserAgent = "tolarian-tutor/1.0"

	// DefaultMinInterval is the minimum spacing between request starts.
	DefaultMinInterval = 100 * time.Millisecond
)

// Option is a functional option for configuring the Client.
type Option func(*settings)

type settings struct {
	baseURL     string
	userAgent   string
	minInterval time.Duration
	recorder    upstream.Recorder
}

// WithBaseURL overrides the Scryfall API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.userAgent = ua }
}

// WithMinInterval overrides the minimum spacing between request starts.
// Zero disables pacing.
func WithMinInterval(d time.Duration) Option {
	return func(s *settings) { s.minInterval = d }
}

// WithRecorder attaches a telemetry recorder to the underlying pipeline.
func WithRecorder(r upstream.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// Client is a Scryfall API client. All methods are safe for concurrent use;
// concurrent calls are serialised by the request pacer so the spacing
// guarantee holds regardless of how the host runtime schedules tool calls.
type Client struct {
	c     *upstream.Client
	pacer *upstream.Pacer
}

// New creates a Scryfall client with the given options.
func New(opts ...Option) *Client {
	s := settings{
		baseURL:     DefaultBaseURL,
		userAgent:   DefaultUserAgent,
		minInterval: DefaultMinInterval,
	}
	for _, o := range opts {
		o(&s)
	}

	pacer := upstream.NewPacer(s.minInterval)
	clientOpts := []upstream.ClientOption{
		upstream.WithPacer(pacer),
		upstream.WithHeader("User-Agent", s.userAgent),
		upstream.WithErrorMessage(errorDetails),
	}
	if s.recorder != nil {
		clientOpts = append(clientOpts, upstream.WithRecorder(s.recorder))
	}

	return &Client{
		c:     upstream.NewClient("scryfall", s.baseURL, clientOpts...),
		pacer: pacer,
	}
}

// errorDetails extracts the "details" field Scryfall puts in error bodies.
func errorDetails(body []byte) string {
	var e struct {
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Details
}

// SearchCards runs a full-text card search using Scryfall query syntax.
// order optionally selects a sort order ("name", "cmc", "edhrec", ...).
// A query matching nothing returns Scryfall's 404; callers that want an
// empty list instead must handle [upstream.ErrNotFound].
func (cl *Client) SearchCards(ctx context.Context, query, order string) (*CardList, error) {
	if query == "" {
		return nil, fmt.Errorf("scryfall: search query must not be empty")
	}
	q := url.Values{"q": {query}}
	if order != "" {
		q.Set("order", order)
	}
	var list CardList
	if err := cl.c.GetJSON(ctx, "/cards/search", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// NamedCard looks up a single card by name. With fuzzy set, Scryfall
// tolerates misspellings and partial names and returns the closest match;
// otherwise the name must match exactly. setCode optionally pins the
// printing to a specific set.
func (cl *Client) NamedCard(ctx context.Context, name string, fuzzy bool, setCode string) (*Card, error) {
	if name == "" {
		return nil, fmt.Errorf("scryfall: card name must not be empty")
	}
	q := url.Values{}
	if fuzzy {
		q.Set("fuzzy", name)
	} else {
		q.Set("exact", name)
	}
	if setCode != "" {
		q.Set("set", setCode)
	}
	var card Card
	if err := cl.c.GetJSON(ctx, "/cards/named", q, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// RandomCard returns a random card, optionally filtered by a Scryfall
// search query.
func (cl *Client) RandomCard(ctx context.Context, query string) (*Card, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	var card Card
	if err := cl.c.GetJSON(ctx, "/cards/random", q, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Rulings returns all official rulings for the card with the given
// Scryfall ID.
func (cl *Client) Rulings(ctx context.Context, cardID string) ([]Ruling, error) {
	if cardID == "" {
		return nil, fmt.Errorf("scryfall: card id must not be empty")
	}
	var list RulingList
	if err := cl.c.GetJSON(ctx, "/cards/"+url.PathEscape(cardID)+"/rulings", nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}
