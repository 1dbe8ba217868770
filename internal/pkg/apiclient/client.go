package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/campify/internal/pkg/interceptors"
)

// DefaultTimeout bounds a single backend round trip.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

// Observer receives one call per backend round trip.
type Observer interface {
	ObserveBackendRequest(method string, code int, elapsed time.Duration)
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	// Token is sent as a bearer token when non-empty.
	Token string
	Query url.Values
	// Body is JSON-encoded when non-nil. DELETE requests may carry one.
	Body any
}

// Client is the REST client shared by every provider.
type Client struct {
	loc      Location
	http     *http.Client
	logger   *slog.Logger
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request tracing at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithObserver records every round trip, typically into telemetry.Metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New returns a Client resolving every path against loc. The default
// transport propagates trace context and correlation headers.
func New(loc Location, opts ...Option) *Client {
	c := &Client{
		loc: loc,
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(interceptors.NewTransport(http.DefaultTransport)),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the API location the client resolves against.
func (c *Client) Location() Location {
	return c.loc
}

// Do sends a JSON request and decodes a JSON response into out (when out is
// non-nil and the body is not empty).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	contentType := ""
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.send(ctx, req, body, contentType, out)
}

// DoMultipart sends form as multipart/form-data. req.Body is ignored.
func (c *Client) DoMultipart(ctx context.Context, req Request, form *Form, out any) error {
	body, contentType, err := form.encode()
	if err != nil {
		return fmt.Errorf("apiclient: encode form %s %s: %w", req.Method, req.Path, err)
	}
	return c.send(ctx, req, body, contentType, out)
}

func (c *Client) send(ctx context.Context, req Request, body io.Reader, contentType string, out any) error {
	target := c.loc.URL(req.Path)
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return fmt.Errorf("apiclient: build %s %s: %w", req.Method, req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(req.Method, 0, start)
		c.logger.DebugContext(ctx, "backend request failed", "method", req.Method, "path", req.Path, "error", err)
		return fmt.Errorf("apiclient: %s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(req.Method, resp.StatusCode, start)
	c.logger.DebugContext(ctx, "backend request",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)
	if err != nil {
		return fmt.Errorf("apiclient: read %s %s: %w", req.Method, req.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(req.Method, req.Path, resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) observe(method string, code int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackendRequest(method, code, time.Since(start))
	}
}
