// Package storage defines the persistence contract for accounts, profiles,
// events and avatars. Implementations live in the memory and sqlite
// subpackages; they must return *Error for expected failures.
package storage

import (
	"context"

	"github.com/cyp0633/recurcal/event"
)

// Storage persists everything the service knows about its users
type Storage interface {
	// CreateAccount stores a new account. The email must be unique.
	CreateAccount(ctx context.Context, account *Account) error
	// GetAccountByEmail finds an account by its (normalized) email.
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	// GetProfile returns the saved profile of a user, or a not_found error.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// SaveProfile merges the non-empty fields of profile into the stored
	// profile, creating it if needed, and returns the result.
	SaveProfile(ctx context.Context, profile *Profile) (*Profile, error)

	// CreateEvent stores a new event. ID and UserID must be set.
	CreateEvent(ctx context.Context, ev *event.Event) error
	// GetEvent finds an event owned by userID.
	GetEvent(ctx context.Context, userID, eventID string) (*event.Event, error)
	// ListEvents returns the events of a user, oldest first.
	ListEvents(ctx context.Context, userID string) ([]*event.Event, error)
	// DeleteEvent removes an event owned by userID.
	DeleteEvent(ctx context.Context, userID, eventID string) error

	// PutAvatar stores the avatar of a user, points their profile at it and
	// returns the avatar path.
	PutAvatar(ctx context.Context, userID, contentType string, data []byte) (string, error)
	// GetAvatar returns the stored avatar of a user.
	GetAvatar(ctx context.Context, userID string) (*Avatar, error)

	// Close releases the backend.
	Close() error
}
