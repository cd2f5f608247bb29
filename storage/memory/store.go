// memory based implementation for testing purposes
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyp0633/recurcal/event"
	"github.com/cyp0633/recurcal/storage"
)

// Store implements storage.Storage interface using in-memory maps
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*storage.Account // key: lower-cased email
	profiles map[string]*storage.Profile // key: userID
	events   map[string]*event.Event     // key: eventID
	avatars  map[string]*storage.Avatar  // key: userID
}

var _ storage.Storage = (*Store)(nil)

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		accounts: make(map[string]*storage.Account),
		profiles: make(map[string]*storage.Profile),
		events:   make(map[string]*event.Event),
		avatars:  make(map[string]*storage.Avatar),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Account operations

func (s *Store) CreateAccount(_ context.Context, account *storage.Account) error {
	if account.ID == "" || account.Email == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "account id and email are required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(account.Email)
	if _, exists := s.accounts[key]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "account already exists",
		}
	}

	stored := *account
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.accounts[key] = &stored
	return nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*storage.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[emailKey(email)]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "account not found",
		}
	}

	copied := *account
	return &copied, nil
}

// Profile operations

func (s *Store) GetProfile(_ context.Context, userID string) (*storage.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "profile not found",
		}
	}

	copied := *profile
	return &copied, nil
}

func (s *Store) SaveProfile(_ context.Context, profile *storage.Profile) (*storage.Profile, error) {
	if profile.UserID == "" {
		return nil, &storage.Error{Type: storage.ErrInvalidInput, Message: "profile user id is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mergeProfile(profile), nil
}

// mergeProfile must be called with the write lock held
func (s *Store) mergeProfile(update *storage.Profile) *storage.Profile {
	current, ok := s.profiles[update.UserID]
	if !ok {
		current = storage.DefaultProfile(update.UserID, update.Email)
	}
	current.Merge(update)
	current.UpdatedAt = time.Now().UTC()
	s.profiles[update.UserID] = current

	copied := *current
	return &copied
}

// Event operations

func (s *Store) CreateEvent(_ context.Context, ev *event.Event) error {
	if ev.ID == "" || ev.UserID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "event id and user id are required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[ev.ID]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "event already exists",
		}
	}

	s.events[ev.ID] = ev.Clone()
	return nil
}

func (s *Store) GetEvent(_ context.Context, userID, eventID string) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok || ev.UserID != userID {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "event not found",
		}
	}

	return ev.Clone(), nil
}

func (s *Store) ListEvents(_ context.Context, userID string) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*event.Event, 0)
	for _, ev := range s.events {
		if ev.UserID == userID {
			events = append(events, ev.Clone())
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})

	return events, nil
}

func (s *Store) DeleteEvent(_ context.Context, userID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok || ev.UserID != userID {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "event not found",
		}
	}

	delete(s.events, eventID)
	return nil
}

// Avatar operations

func (s *Store) PutAvatar(_ context.Context, userID, contentType string, data []byte) (string, error) {
	if userID == "" || len(data) == 0 {
		return "", &storage.Error{Type: storage.ErrInvalidInput, Message: "user id and avatar data are required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.avatars[userID] = &storage.Avatar{
		UserID:      userID,
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
		UpdatedAt:   time.Now().UTC(),
	}

	path := storage.AvatarPath(userID)
	s.mergeProfile(&storage.Profile{UserID: userID, AvatarURL: path})
	return path, nil
}

func (s *Store) GetAvatar(_ context.Context, userID string) (*storage.Avatar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	avatar, ok := s.avatars[userID]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "avatar not found",
		}
	}

	copied := *avatar
	copied.Data = append([]byte(nil), avatar.Data...)
	return &copied, nil
}

func (s *Store) Close() error {
	return nil
}
