package client

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// AuthTransport implements http.RoundTripper and authenticates outgoing
// requests with a session token, or with Basic credentials when no token
// is set.
type AuthTransport struct {
	Token     string
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewBasicAuthTransport creates an AuthTransport sending email and password
// on every request. If transport is nil, http.DefaultTransport is used.
func NewBasicAuthTransport(email, password string, transport http.RoundTripper, logger *slog.Logger) *AuthTransport {
	t := newAuthTransport(transport, logger)
	t.Username = email
	t.Password = password
	return t
}

// NewTokenTransport creates an AuthTransport sending a bearer session token.
// If transport is nil, http.DefaultTransport is used.
func NewTokenTransport(token string, transport http.RoundTripper, logger *slog.Logger) *AuthTransport {
	t := newAuthTransport(transport, logger)
	t.Token = token
	return t
}

func newAuthTransport(transport http.RoundTripper, logger *slog.Logger) *AuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AuthTransport{Transport: transport, Logger: logger}
}

// RoundTrip implements the http.RoundTripper interface
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Transport == nil {
		return nil, errors.New("transport cannot be nil")
	}

	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	switch {
	case t.Token != "":
		req.Header.Set("Authorization", "Bearer "+t.Token)
	case t.Username != "" && t.Password != "":
		req.SetBasicAuth(t.Username, t.Password)
	default:
		return nil, errors.New("no session token or credentials configured")
	}

	t.Logger.Debug("outgoing request",
		"method", req.Method,
		"url", req.URL.String())

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.Logger.Debug("request failed", "error", err)
		return nil, err
	}

	t.Logger.Debug("incoming response",
		"status", resp.Status,
		"content_type", resp.Header.Get("Content-Type"))
	return resp, nil
}
