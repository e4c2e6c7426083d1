// Package rest implements store.RemoteStore against a PostgREST-style HTTP API.
//
// Tables are addressed as {base}/{table}. Filters use PostgREST operators
// (user_id=eq.X) and upserts rely on the Prefer header with on_conflict.
package rest

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewireapp/rewire-server/internal/store"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRPS     = 10.0
	defaultBurst   = 5

	// Bodies beyond this are truncated in error messages.
	maxErrorBody = 512
)

// Options configures the client.
type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client is a rate-limited PostgREST client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ store.RemoteStore = (*Client)(nil)

// New creates a new client. Zero-valued options fall back to defaults.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, store.ErrInvalidInput.WithMessage("rest base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, store.ErrInvalidInput.WithMessage("rest base url is invalid").WithCause(err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Ping checks that the API root answers.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, request{op: "ping", method: http.MethodGet})
	return err
}

// request describes one PostgREST call.
type request struct {
	op     string
	method string
	table  string
	query  url.Values
	prefer []string
	body   any
}

// do executes an HTTP request with rate limiting and returns the body and headers.
// Transport failures, 408, 429 and 5xx map to store.ErrUnavailable.
func (c *Client) do(ctx context.Context, r request) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, store.Unavailable(r.op+": rate limit wait", err)
	}

	u := c.baseURL + "/" + r.table
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: marshal body: %w", r.op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: create request: %w", r.op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Rewire/1.0")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	c.logger.Debug("remote request",
		"op", r.op,
		"method", r.method,
		"table", r.table,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, store.Unavailable(r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, store.Unavailable(r.op+": read response", err)
	}

	if err := statusError(r.op, resp.StatusCode, data); err != nil {
		return nil, nil, err
	}
	return data, resp.Header, nil
}

// statusError maps a non-2xx response to a store error.
func statusError(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > maxErrorBody {
		detail = detail[:maxErrorBody]
	}
	cause := fmt.Errorf("status %d: %s", status, detail)

	switch {
	case status == http.StatusNotFound:
		return store.ErrNotFound.WithMessage(op).WithCause(cause)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return store.Unavailable(op, cause)
	default:
		return store.ErrInvalidInput.WithMessage(op).WithCause(cause)
	}
}

// eq builds a PostgREST equality filter.
func eq(v string) string {
	return "eq." + v
}

// decode unmarshals a JSON response body.
func decode[T any](op string, data []byte) (T, error) {
	var out T
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%s: parse response: %w", op, err)
	}
	return out, nil
}
