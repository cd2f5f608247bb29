package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cyp0633/recurcal/event"
)

// MockStorage implements the Storage interface for testing
type MockStorage struct {
	mock.Mock
}

var _ Storage = (*MockStorage)(nil)

func (m *MockStorage) CreateAccount(ctx context.Context, account *Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockStorage) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockStorage) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockStorage) SaveProfile(ctx context.Context, profile *Profile) (*Profile, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Profile), args.Error(1)
}

func (m *MockStorage) CreateEvent(ctx context.Context, ev *event.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockStorage) GetEvent(ctx context.Context, userID, eventID string) (*event.Event, error) {
	args := m.Called(ctx, userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockStorage) ListEvents(ctx context.Context, userID string) ([]*event.Event, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockStorage) DeleteEvent(ctx context.Context, userID, eventID string) error {
	args := m.Called(ctx, userID, eventID)
	return args.Error(0)
}

func (m *MockStorage) PutAvatar(ctx context.Context, userID, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, userID, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) GetAvatar(ctx context.Context, userID string) (*Avatar, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Avatar), args.Error(1)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Helper methods for creating test data ---

// NewMockNotFound creates a not_found error as returned by real stores
func NewMockNotFound(message string) error {
	return &Error{Type: ErrNotFound, Message: message}
}
