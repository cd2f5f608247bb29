package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const (
	// PrincipalContextKey is the context key for the authenticated principal
	PrincipalContextKey contextKey = "principal"
)

// GetPrincipalFromContext retrieves the authenticated principal from the context
func GetPrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal returns a copy of ctx carrying principal
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, principal)
}

// ErrorHandler writes the response for a rejected request
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err *Error)

// Middleware creates HTTP middleware that enforces authentication.
//
// A request is accepted with either "Authorization: Bearer <token>", checked
// by sessions, or HTTP Basic credentials, checked by authenticator. A nil
// onError writes a plain-text response.
func Middleware(authenticator Authenticator, sessions TokenVerifier, realm string, onError ErrorHandler) func(http.Handler) http.Handler {
	if realm == "" {
		realm = "recurcal"
	}
	if onError == nil {
		onError = plainError
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticate(r, authenticator, sessions)
			if err != nil {
				requestAuth(w, r, realm, err, onError)
				return
			}

			// Validate access to the requested path
			if err := authenticator.ValidateAccess(r.Context(), principal, r.URL.Path); err != nil {
				var authErr *Error
				if errors.As(err, &authErr) && authErr.Type == ErrForbidden {
					onError(w, r, authErr)
					return
				}
				requestAuth(w, r, realm, err, onError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func authenticate(r *http.Request, authenticator Authenticator, sessions TokenVerifier) (*Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, &Error{Type: ErrUnauthorized, Message: "authentication required"}
	}

	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		if sessions == nil {
			return nil, &Error{Type: ErrUnauthorized, Message: "bearer tokens are not accepted"}
		}
		return sessions.Verify(strings.TrimSpace(token))
	}

	creds, err := parseBasicAuth(header)
	if err != nil {
		return nil, err
	}
	return authenticator.Authenticate(r.Context(), creds)
}

// requestAuth sends WWW-Authenticate header
func requestAuth(w http.ResponseWriter, r *http.Request, realm string, cause error, onError ErrorHandler) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`", Basic realm="`+realm+`"`)

	var authErr *Error
	if !errors.As(cause, &authErr) || authErr.Type != ErrUnauthorized {
		authErr = &Error{Type: ErrUnauthorized, Message: "authentication required", Err: cause}
	}
	onError(w, r, authErr)
}

func plainError(w http.ResponseWriter, _ *http.Request, err *Error) {
	if err.Type == ErrForbidden {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// parseBasicAuth parses an HTTP Basic Authentication string
func parseBasicAuth(auth string) (Credentials, error) {
	const prefix = "Basic "
	if !strings.HasPrefix(auth, prefix) {
		return Credentials{}, &Error{
			Type:    ErrInvalidCredentials,
			Message: "invalid authorization header format",
		}
	}

	encoded := auth[len(prefix):]
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Credentials{}, &Error{
			Type:    ErrInvalidCredentials,
			Message: "invalid base64 encoding",
			Err:     err,
		}
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return Credentials{}, &Error{
			Type:    ErrInvalidCredentials,
			Message: "invalid credentials format",
		}
	}

	return Credentials{
		Username: username,
		Password: password,
	}, nil
}
