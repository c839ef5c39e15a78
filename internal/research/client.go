// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the research client.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by type so wrapped instances compare equal.
func (e *ClientError) Is(target error) bool {
	var t *ClientError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type && t.StatusCode == 0 && t.Cause == nil
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeHTTPStatus
	ErrTypeNoBody
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrTimeout  = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrCanceled = &ClientError{Type: ErrTypeCanceled, Message: "request canceled"}
	ErrNoBody   = &ClientError{Type: ErrTypeNoBody, Message: "No response body"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultBaseURL is where the research backend listens by default.
const DefaultBaseURL = "http://127.0.0.1:8000"

// NDJSONContentType is sent as the Accept header on research requests.
const NDJSONContentType = "application/x-ndjson"

// ClientConfig holds configuration options for the research client.
type ClientConfig struct {
	// BaseURL is the backend root, without a trailing slash.
	BaseURL string

	// Timeout bounds non-streaming requests such as the health probe.
	Timeout time.Duration

	// StreamTimeout bounds dialing and waiting for response headers on a
	// research stream. The body itself may stream for as long as it likes.
	StreamTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       DefaultBaseURL,
		Timeout:       10 * time.Second,
		StreamTimeout: 60 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the research backend.
//
// The Client is safe for concurrent use.
//
// Example:
//
//	client := research.NewClient()
//	stream, err := client.Research(ctx, "fusion energy")
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	err = stream.Process(ctx, func(line string) error { ... })
type Client struct {
	mu           sync.RWMutex
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.StreamTimeout == 0 {
		config.StreamTimeout = 60 * time.Second
	}

	// No overall Timeout on the stream client: a research run can take
	// minutes and cancellation flows through the request context.
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: config.StreamTimeout}).DialContext,
		ResponseHeaderTimeout: config.StreamTimeout,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{Transport: transport},
	}
}

// BaseURL returns the backend root currently in use.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.BaseURL
}

// SetBaseURL points the client at a different backend. In-flight requests
// are unaffected.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.BaseURL = strings.TrimRight(baseURL, "/")
}

// ResearchURL builds the endpoint for a query. The query is escaped as a
// single path segment.
func (c *Client) ResearchURL(query string) string {
	return c.BaseURL() + "/research/" + url.PathEscape(query)
}

// =============================================================================
// RESEARCH STREAM
// =============================================================================

// Research issues the streaming request for query and returns a reader over
// the response body. The caller must Close the returned stream.
//
// A non-2xx status yields a ClientError of type ErrTypeHTTPStatus whose
// message is "Research failed: <status text>".
func (c *Client) Research(ctx context.Context, query string) (*StreamReader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResearchURL(query), nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", NDJSONContentType)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainAndClose(resp.Body)
		return nil, &ClientError{
			Type:       ErrTypeHTTPStatus,
			Message:    "Research failed: " + statusText(resp),
			StatusCode: resp.StatusCode,
		}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrNoBody
	}

	return NewStreamReader(resp.Body), nil
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status string `json:"status"`
}

// Health verifies that the backend is reachable and reports status "ok".
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/health", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:       ErrTypeHTTPStatus,
			Message:    "health check failed: " + statusText(resp),
			StatusCode: resp.StatusCode,
		}
	}

	var result healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if result.Status != "ok" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "backend reported status " + result.Status}
	}

	return nil
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

// IsCanceled checks if an error came from a canceled request.
func IsCanceled(err error) bool {
	return hasType(err, ErrTypeCanceled)
}

// IsConnection checks if an error indicates the backend could not be reached
// or the stream broke mid-read.
func IsConnection(err error) bool {
	return hasType(err, ErrTypeConnection)
}

// IsHTTPStatus checks if an error is a non-2xx response.
func IsHTTPStatus(err error) bool {
	return hasType(err, ErrTypeHTTPStatus)
}

func hasType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// classifyTransportError maps an http.Client or body read failure onto a
// ClientError, preferring the context's verdict when it has one.
func classifyTransportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: err}
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "failed to reach research backend", Cause: err}
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64<<10))
	r.Close()
}
