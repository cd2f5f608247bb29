package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is how long an issued session token stays valid
const DefaultSessionTTL = 24 * time.Hour

// SessionClaims is the JWT payload of a session token
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionIssuer issues and verifies HS256 session tokens
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

var _ TokenVerifier = (*SessionIssuer)(nil)

// SessionOption configures a SessionIssuer
type SessionOption func(*SessionIssuer)

// WithSessionTTL sets the lifetime of issued tokens
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionIssuer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIssuer sets the iss claim
func WithIssuer(issuer string) SessionOption {
	return func(s *SessionIssuer) {
		s.issuer = issuer
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionIssuer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionIssuer creates an issuer signing with secret
func NewSessionIssuer(secret []byte, opts ...SessionOption) (*SessionIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret must not be empty")
	}
	s := &SessionIssuer{
		secret: secret,
		ttl:    DefaultSessionTTL,
		issuer: "recurcal",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for principal and returns it with its expiry
func (s *SessionIssuer) Issue(principal *Principal) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := &SessionClaims{
		Email: principal.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   principal.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify implements TokenVerifier
func (s *SessionIssuer) Verify(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, &Error{
			Type:    ErrUnauthorized,
			Message: "invalid session token",
			Err:     err,
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &Error{
			Type:    ErrUnauthorized,
			Message: "invalid session token claims",
		}
	}

	return &Principal{ID: claims.Subject, Email: claims.Email}, nil
}
