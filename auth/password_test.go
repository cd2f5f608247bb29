package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cyp0633/recurcal/storage"
	"github.com/cyp0633/recurcal/storage/memory"
)

func newTestAuthenticator(accounts Accounts) *PasswordAuthenticator {
	return NewPasswordAuthenticator(accounts, WithBcryptCost(bcrypt.MinCost))
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(memory.New())

	principal, err := a.SignUp(ctx, "  Alice@Example.com ", "secret1", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, principal.ID)
	assert.Equal(t, "alice@example.com", principal.Email)

	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
		wantType ErrorType
	}{
		{"passwords differ", "bob@example.com", "secret1", "secret2", ErrPasswordMismatch},
		{"duplicate email", "alice@example.com", "another1", "another1", ErrUserExists},
		{"invalid email", "not-an-email", "secret1", "secret1", ErrInvalidInput},
		{"short password", "carol@example.com", "abc", "abc", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.SignUp(ctx, tt.email, tt.password, tt.confirm)
			assert.True(t, IsType(err, tt.wantType), "got %v", err)
		})
	}

	t.Run("mismatch message", func(t *testing.T) {
		_, err := a.SignUp(ctx, "dave@example.com", "secret1", "secret2")
		var authErr *Error
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, "Passwords do not match", authErr.Message)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := newTestAuthenticator(store)

	created, err := a.SignUp(ctx, "alice@example.com", "secret1", "secret1")
	require.NoError(t, err)

	account, err := store.GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", account.PasswordHash, "passwords must be stored hashed")

	principal, err := a.Authenticate(ctx, Credentials{Username: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, principal.ID)

	_, err = a.Authenticate(ctx, Credentials{Username: "alice@example.com", Password: "wrong"})
	assert.True(t, IsType(err, ErrInvalidCredentials), "got %v", err)

	_, err = a.Authenticate(ctx, Credentials{Username: "nobody@example.com", Password: "secret1"})
	assert.True(t, IsType(err, ErrInvalidCredentials), "got %v", err)
}

// accountsMock is a testify mock of Accounts
type accountsMock struct {
	mock.Mock
}

func (m *accountsMock) CreateAccount(ctx context.Context, account *storage.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *accountsMock) GetAccountByEmail(ctx context.Context, email string) (*storage.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Account), args.Error(1)
}

func TestAuthenticate_StorageFailure(t *testing.T) {
	accounts := new(accountsMock)
	backendErr := errors.New("disk on fire")
	accounts.On("GetAccountByEmail", mock.Anything, "alice@example.com").Return(nil, backendErr)

	a := newTestAuthenticator(accounts)
	_, err := a.Authenticate(context.Background(), Credentials{Username: "alice@example.com", Password: "x"})

	assert.ErrorIs(t, err, backendErr)
	accounts.AssertExpectations(t)
}

func TestValidateAccess(t *testing.T) {
	a := newTestAuthenticator(memory.New())

	err := a.ValidateAccess(context.Background(), nil, "/events")
	assert.True(t, IsType(err, ErrUnauthorized))

	assert.NoError(t, a.ValidateAccess(context.Background(), &Principal{ID: "u1"}, "/events"))
}
