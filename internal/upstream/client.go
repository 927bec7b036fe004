// Package upstream implements the shared outbound request pipeline used by
// all upstream API clients: a request pacer that enforces minimum spacing
// between calls, a JSON GET/POST helper with uniform error mapping, and the
// error taxonomy tool handlers translate into user-facing failures.
//
// The pipeline deliberately has no retries, no backoff beyond the pacer and
// no circuit breaking — a failed call surfaces immediately and independently.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTimeout bounds a single upstream request when no override is given.
const defaultTimeout = 30 * time.Second

// Recorder receives pipeline telemetry. Implemented by observe.Metrics;
// a nil Recorder disables recording.
type Recorder interface {
	// RecordRequest is called once per completed HTTP request. status is 0
	// when the request failed before a response was received.
	RecordRequest(ctx context.Context, service, method string, status int, elapsed time.Duration)

	// RecordPacerWait is called with the time spent blocked in the pacer.
	RecordPacerWait(ctx context.Context, service string, waited time.Duration)
}

// ClientOption is a functional option for configuring a [Client].
type ClientOption func(*Client)

// WithPacer attaches a request pacer; every request waits on it first.
func WithPacer(p *Pacer) ClientOption {
	return func(c *Client) {
		c.pacer = p
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithTimeout overrides the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithErrorMessage sets the function that extracts a human-readable message
// from a non-2xx response body. Scryfall puts it in a "details" field;
// other APIs differ.
func WithErrorMessage(fn func(body []byte) string) ClientOption {
	return func(c *Client) {
		c.errorMessage = fn
	}
}

// Client issues JSON requests against a single upstream base URL.
// All methods are safe for concurrent use.
type Client struct {
	service      string
	baseURL      string
	headers      map[string]string
	httpClient   *http.Client
	pacer        *Pacer
	recorder     Recorder
	errorMessage func(body []byte) string
}

// NewClient creates a Client for the upstream rooted at baseURL. service is
// a short identifier used in error messages and telemetry attributes.
func NewClient(service, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    map[string]string{"Accept": "application/json"},
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetJSON issues a GET against path with the given query parameters and
// decodes the JSON response into out.
//
// Error mapping: HTTP 404 wraps [ErrNotFound]; other non-2xx statuses yield
// a [*StatusError] carrying the upstream's message; an undecodable body
// yields a [*ParseError]; transport failures are returned wrapped.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	return c.do(req, out)
}

// PostJSON issues a POST against path with body JSON-encoded as the request
// payload and decodes the JSON response into out. Error mapping matches
// [Client.GetJSON].
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request body: %w", c.service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do runs the pacer, executes the request, and maps the response.
func (c *Client) do(req *http.Request, out any) error {
	ctx := req.Context()

	if c.pacer != nil {
		waitStart := time.Now()
		if err := c.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.service, err)
		}
		if c.recorder != nil {
			c.recorder.RecordPacerWait(ctx, c.service, time.Since(waitStart))
		}
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.recorder != nil {
			c.recorder.RecordRequest(ctx, c.service, req.Method, 0, time.Since(start))
		}
		return fmt.Errorf("%s: %s %s: %w", c.service, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordRequest(ctx, c.service, req.Method, resp.StatusCode, time.Since(start))
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %s: %w", c.service, req.URL.Path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := ""
		if c.errorMessage != nil {
			msg = c.errorMessage(body)
		}
		return fmt.Errorf("%s: %w", c.service, &StatusError{Status: resp.StatusCode, Message: msg})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w", c.service, &ParseError{Err: err})
	}
	return nil
}
