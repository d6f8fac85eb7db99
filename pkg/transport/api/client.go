// Package api is the single choke point for calls to the SQL migration service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modoterra/sqlshift/pkg/notify"
)

// ErrUnreachable wraps failures where no response was received.
var ErrUnreachable = errors.New("no response received from the server")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// TokenSource yields the bearer token to attach, empty for none.
type TokenSource interface {
	Token() string
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     TokenSource
	Notifier   notify.Notifier
	Logger     *slog.Logger
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client talks JSON over HTTP to the migration service.
type Client struct {
	base     *url.URL
	http     *http.Client
	tokens   TokenSource
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a client for the service at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Timeout > 0 {
		clone := *hc
		clone.Timeout = opts.Timeout
		hc = &clone
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		base:     base,
		http:     hc,
		tokens:   opts.Tokens,
		notifier: opts.Notifier,
		logger:   logger,
		now:      now,
	}, nil
}

// SetTokens replaces the token source. Used to break the client/session construction cycle.
func (c *Client) SetTokens(ts TokenSource) {
	c.tokens = ts
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Request sends method+path with optional query params and JSON body, and
// decodes a 2xx JSON response into out. Every failure is reported to the
// notifier exactly once before it is returned.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	err := c.do(ctx, method, path, query, body, out)
	if err != nil {
		c.report(err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request done", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "elapsed", c.now().Sub(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: %w: read body: %w", method, path, ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb ErrorBody
		_ = json.Unmarshal(data, &eb)
		return &StatusError{Code: resp.StatusCode, Message: eb.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) report(err error) {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		msg := se.Message
		if msg == "" {
			msg = "Request failed"
		}
		notify.Error(c.notifier, "API Error: "+msg, "")
	case errors.Is(err, ErrUnreachable):
		notify.Error(c.notifier, "Network Error: No response received from the server", "")
	default:
		notify.Error(c.notifier, "Error: "+err.Error(), "")
	}
}
