package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cyp0633/recurcal/storage"
)

// MinPasswordLength is the shortest password SignUp accepts
const MinPasswordLength = 6

// Accounts persists login credentials. storage.Storage satisfies it.
type Accounts interface {
	CreateAccount(ctx context.Context, account *storage.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*storage.Account, error)
}

// PasswordAuthenticator signs users up and checks their email and password
type PasswordAuthenticator struct {
	accounts Accounts
	cost     int
	validate *validator.Validate
	logger   *slog.Logger
	// dummyHash is compared against when the account does not exist
	dummyHash []byte
}

var _ Authenticator = (*PasswordAuthenticator)(nil)

// Option represents a configuration option for the PasswordAuthenticator
type Option func(*PasswordAuthenticator)

// WithLogger sets the logger for the authenticator
func WithLogger(logger *slog.Logger) Option {
	return func(a *PasswordAuthenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithBcryptCost sets the bcrypt cost used for new passwords
func WithBcryptCost(cost int) Option {
	return func(a *PasswordAuthenticator) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			a.cost = cost
		}
	}
}

// NewPasswordAuthenticator creates an authenticator backed by accounts
func NewPasswordAuthenticator(accounts Accounts, opts ...Option) *PasswordAuthenticator {
	a := &PasswordAuthenticator{
		accounts: accounts,
		cost:     bcrypt.DefaultCost,
		validate: validator.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	// Apply options
	for _, opt := range opts {
		opt(a)
	}

	a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("recurcal-dummy-password"), a.cost)
	return a
}

type signUpRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account. password and confirm must match.
func (a *PasswordAuthenticator) SignUp(ctx context.Context, email, password, confirm string) (*Principal, error) {
	email = normalizeEmail(email)

	if password != confirm {
		a.logger.Info("sign up failed: passwords do not match",
			"email", email)
		return nil, &Error{
			Type:    ErrPasswordMismatch,
			Message: "Passwords do not match",
		}
	}

	if err := a.validate.Struct(signUpRequest{Email: email, Password: password}); err != nil {
		a.logger.Info("sign up failed: invalid input",
			"email", email,
			"error", err)
		return nil, &Error{
			Type:    ErrInvalidInput,
			Message: "a valid email and a password of at least 6 characters are required",
			Err:     err,
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, &Error{Type: ErrInvalidInput, Message: "failed to hash password", Err: err}
	}

	account := &storage.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := a.accounts.CreateAccount(ctx, account); err != nil {
		if storage.IsType(err, storage.ErrAlreadyExists) {
			a.logger.Warn("sign up failed: account already exists",
				"email", email)
			return nil, &Error{
				Type:    ErrUserExists,
				Message: "an account with this email already exists",
				Err:     err,
			}
		}
		a.logger.Error("sign up failed: storage error",
			"email", email,
			"error", err)
		return nil, err
	}

	a.logger.Info("account created",
		"user_id", account.ID,
		"email", email)

	return &Principal{ID: account.ID, Email: email}, nil
}

// Authenticate implements Authenticator. Username is the account email.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	email := normalizeEmail(creds.Username)

	account, err := a.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if !storage.IsNotFound(err) {
			a.logger.Error("authentication failed: storage error",
				"email", email,
				"error", err)
			return nil, err
		}
		// Spend the same time as a real comparison
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(creds.Password))
		a.logger.Info("authentication failed: user not found",
			"email", email)
		return nil, &Error{
			Type:    ErrInvalidCredentials,
			Message: "invalid email or password",
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			a.logger.Error("authentication failed: corrupt password hash",
				"user_id", account.ID,
				"error", err)
		} else {
			a.logger.Info("authentication failed: invalid password",
				"email", email)
		}
		return nil, &Error{
			Type:    ErrInvalidCredentials,
			Message: "invalid email or password",
		}
	}

	a.logger.Debug("authentication successful",
		"user_id", account.ID)

	return &Principal{ID: account.ID, Email: account.Email}, nil
}

// ValidateAccess implements Authenticator. Every authenticated user may
// reach every route; per-user scoping happens in storage.
func (a *PasswordAuthenticator) ValidateAccess(_ context.Context, principal *Principal, path string) error {
	if principal == nil || principal.ID == "" {
		a.logger.Info("access validation failed: no principal",
			"path", path)
		return &Error{
			Type:    ErrUnauthorized,
			Message: "authentication required",
		}
	}

	a.logger.Debug("access validation successful",
		"user_id", principal.ID,
		"path", path)

	return nil
}
