package auth

import (
	"context"
	"errors"
	"fmt"
)

// Principal represents an authenticated user
type Principal struct {
	ID    string
	Email string
}

// Credentials represents authentication credentials
type Credentials struct {
	Username string
	Password string
}

// ErrorType represents the type of authentication error
type ErrorType string

const (
	ErrInvalidCredentials ErrorType = "invalid_credentials"
	ErrUnauthorized       ErrorType = "unauthorized"
	ErrForbidden          ErrorType = "forbidden"
	ErrPasswordMismatch   ErrorType = "password_mismatch"
	ErrUserExists         ErrorType = "user_exists"
	ErrInvalidInput       ErrorType = "invalid_input"
)

// Error represents an authentication-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err is an authentication error of type t
func IsType(err error, t ErrorType) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Type == t
}

// Authenticator defines the interface for authentication providers
type Authenticator interface {
	// Authenticate validates credentials and returns a Principal if successful
	Authenticate(ctx context.Context, creds Credentials) (*Principal, error)

	// ValidateAccess checks if a principal has access to a given path
	ValidateAccess(ctx context.Context, principal *Principal, path string) error
}

// TokenVerifier turns a bearer token back into the principal it was issued for
type TokenVerifier interface {
	Verify(token string) (*Principal, error)
}
