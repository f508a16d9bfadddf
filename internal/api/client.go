// Package api is the HTTP client for the AutoDash backend.
// Every endpoint the client consumes is a method on Client; responses are
// decoded into dashtypes view-models and failures into HTTPError or
// InsufficientCreditsError.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"autodash/internal/logger"
)

// DefaultTimeout bounds every non-streaming request.
const DefaultTimeout = 120 * time.Second

// Client talks to one backend with one session credential. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout for non-streaming calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its Timeout should be zero
// so streams are bounded by their context only.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for baseURL authenticating with token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		userAgent:  "autodash-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	logger.Debug("API client initialized", "base_url", c.baseURL, "timeout", c.timeout.String(), "has_token", token != "")
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// endpoint joins the base URL with path segments, escaping each segment.
func (c *Client) endpoint(path string, query url.Values, segments ...string) string {
	escaped := make([]any, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.baseURL + fmt.Sprintf(path, escaped...)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// newRequest builds a request carrying session credentials.
func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.AddCookie(&http.Cookie{Name: "session", Value: c.token})
	}
	return req, nil
}

// send executes req and maps non-2xx responses to errors. On success the
// caller owns resp.Body.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	logger.Debug("Starting backend request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to execute backend request", "error", err, "method", req.Method, "url", req.URL.String())
		return nil, fmt.Errorf("failed to execute %s %s: %w", req.Method, req.URL.Path, err)
	}
	logger.Request(req.Method, req.URL.String(), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, decodeError(resp.StatusCode, resp.Status, body)
	}
	return resp, nil
}

// doJSON sends in (nil for no body) and decodes the response into out (nil to discard).
func (c *Client) doJSON(ctx context.Context, method, rawURL string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, rawURL, body, contentType)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return decodeBody(resp.Body, out)
}

// doBinary sends a JSON body and returns the raw response bytes.
func (c *Client) doBinary(ctx context.Context, method, rawURL string, in any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := sonic.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := c.newRequest(ctx, method, rawURL, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

func decodeBody(r io.Reader, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
