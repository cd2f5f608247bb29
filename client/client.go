// Package client is a Go client for the recurcal HTTP API.
package client

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
)

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client talks to one recurcal server
type Client struct {
	httpClient *http.Client
	baseURL    url.URL
	logger     *slog.Logger
}

// Option represents a configuration option for the Client
type Option func(*Client)

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets the underlying HTTP client, usually one carrying an
// AuthTransport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL %q", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/"

	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    *u,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithToken returns a copy of c that authenticates with a session token
func (c *Client) WithToken(token string) *Client {
	copied := *c
	base := http.DefaultTransport
	if c.httpClient.Transport != nil {
		base = c.httpClient.Transport
		if at, ok := base.(*AuthTransport); ok {
			base = at.Transport
		}
	}
	copied.httpClient = &http.Client{
		Transport: NewTokenTransport(token, base, c.logger),
		Timeout:   c.httpClient.Timeout,
	}
	return &copied
}

// resolveURL resolves a path relative to the base URL
func (c *Client) resolveURL(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", path, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

// do sends a request and returns the response body of a 2xx response
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, http.Header, error) {
	resolvedURL, err := c.resolveURL(path)
	if err != nil {
		return nil, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolvedURL.String(), reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("starting request",
		"method", method,
		"url", resolvedURL.String(),
		"body_length", len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("received response",
		"status", resp.Status,
		"body_length", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.Header, decodeAPIError(resp.StatusCode, data)
	}
	return data, resp.Header, nil
}

func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

// doJSON marshals in, if any, and decodes the response into out, if any
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = data
		contentType = "application/json"
	}

	data, _, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return unmarshal(data, out)
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
