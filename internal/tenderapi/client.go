// Package tenderapi is a typed client for the tender backend's /api/v1/auth endpoints.
package tenderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const apiPrefix = "/api/v1/auth"

// Client calls the tender backend. A nil token source sends unauthenticated requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport-level client. Auth is not added to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a client for baseURL (scheme + host, no /api suffix).
func NewClient(baseURL string, src oauth2.TokenSource, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if src != nil {
		// oauth2.Transport asks src for a token on every request, so a
		// MutableToken swap takes effect immediately.
		hc.Transport = &oauth2.Transport{Source: src, Base: http.DefaultTransport}
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: hc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StaticToken wraps a bearer token for one-shot clients such as the CLI.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// MutableToken is a TokenSource whose token can be replaced after re-login.
type MutableToken struct {
	mu    sync.RWMutex
	token string
}

// NewMutableToken returns a source seeded with token.
func NewMutableToken(token string) *MutableToken {
	return &MutableToken{token: token}
}

// Set swaps the bearer token.
func (m *MutableToken) Set(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// Current returns the bearer token in use.
func (m *MutableToken) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Token implements oauth2.TokenSource.
func (m *MutableToken) Token() (*oauth2.Token, error) {
	tok := m.Current()
	if tok == "" {
		return nil, errors.New("tenderapi: no bearer token")
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Code    int
	Message string
	Path    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tender api %s: http status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("tender api %s: http status %d: %s", e.Path, e.Code, e.Message)
}

// IsConflict reports whether err is an upstream 409.
func IsConflict(err error) bool {
	return HasStatus(err, http.StatusConflict)
}

// IsUnauthorized reports whether err is an upstream 401.
func IsUnauthorized(err error) bool {
	return HasStatus(err, http.StatusUnauthorized)
}

// HasStatus reports whether err is a StatusError with the given code.
func HasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// IsTransient reports whether a retry of the same call could plausibly succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests || se.Code == http.StatusRequestTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}

func (c *Client) url(path string) string {
	return c.baseURL + apiPrefix + path
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tender api %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("tender api %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(data), Path: path}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("tender api %s: decode response: %w", path, err)
	}
	return nil
}

// errorMessage pulls FastAPI-style detail or a generic message out of an error body.
func errorMessage(data []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(truncate(data, 200)))
	}
	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return string(truncate(body.Detail, 200))
	}
	return body.Message
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
