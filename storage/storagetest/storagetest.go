// Package storagetest runs the behaviour every storage.Storage
// implementation must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/recurcal/event"
	"github.com/cyp0633/recurcal/recurrence"
	"github.com/cyp0633/recurcal/storage"
)

// Run exercises newStore against the storage contract. newStore must return
// an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"Accounts", testAccounts},
		{"Profiles", testProfiles},
		{"Events", testEvents},
		{"EventOwnership", testEventOwnership},
		{"Avatars", testAvatars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func testAccounts(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	account := &storage.Account{
		ID:           uuid.NewString(),
		Email:        "alice@example.com",
		PasswordHash: "hash",
	}
	require.NoError(t, s.CreateAccount(ctx, account))

	got, err := s.GetAccountByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.False(t, got.CreatedAt.IsZero())

	err = s.CreateAccount(ctx, &storage.Account{ID: uuid.NewString(), Email: "ALICE@example.com", PasswordHash: "x"})
	assert.True(t, storage.IsType(err, storage.ErrAlreadyExists), "got %v", err)

	_, err = s.GetAccountByEmail(ctx, "bob@example.com")
	assert.True(t, storage.IsNotFound(err), "got %v", err)

	err = s.CreateAccount(ctx, &storage.Account{Email: "nobody@example.com"})
	assert.True(t, storage.IsType(err, storage.ErrInvalidInput), "got %v", err)
}

func testProfiles(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	userID := uuid.NewString()

	_, err := s.GetProfile(ctx, userID)
	assert.True(t, storage.IsNotFound(err), "got %v", err)

	created, err := s.SaveProfile(ctx, &storage.Profile{UserID: userID, Email: "carol@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "carol", created.DisplayName)
	assert.Equal(t, storage.ThemeLight, created.Theme)
	assert.Empty(t, created.AvatarURL)

	// Only non-empty fields are merged
	updated, err := s.SaveProfile(ctx, &storage.Profile{UserID: userID, Theme: storage.ThemeDark})
	require.NoError(t, err)
	assert.Equal(t, storage.ThemeDark, updated.Theme)
	assert.Equal(t, "carol", updated.DisplayName)
	assert.Equal(t, "carol@example.com", updated.Email)

	_, err = s.SaveProfile(ctx, &storage.Profile{UserID: userID, DisplayName: "Carol C."})
	require.NoError(t, err)

	got, err := s.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Carol C.", got.DisplayName)
	assert.Equal(t, storage.ThemeDark, got.Theme)

	_, err = s.SaveProfile(ctx, &storage.Profile{})
	assert.True(t, storage.IsType(err, storage.ErrInvalidInput), "got %v", err)
}

func newEvent(userID, name string, createdAt time.Time) *event.Event {
	end := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	return &event.Event{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: name + " description",
		Recurrence: recurrence.Pattern{
			Type:        recurrence.Yearly,
			Interval:    1,
			MonthOfYear: mo.Some(0),
			DayOfMonth:  mo.Some(6),
		},
		DateRange: recurrence.DateRange{
			StartDate: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
			EndDate:   &end,
		},
		CreatedAt: createdAt,
	}
}

func testEvents(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	userID := uuid.NewString()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	second := newEvent(userID, "second", base.Add(time.Hour))
	first := newEvent(userID, "first", base)
	require.NoError(t, s.CreateEvent(ctx, second))
	require.NoError(t, s.CreateEvent(ctx, first))

	err := s.CreateEvent(ctx, first)
	assert.True(t, storage.IsType(err, storage.ErrAlreadyExists), "got %v", err)

	got, err := s.GetEvent(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Name, got.Name)
	assert.Equal(t, first.Recurrence, got.Recurrence)
	assert.True(t, got.DateRange.StartDate.Equal(first.DateRange.StartDate))
	require.NotNil(t, got.DateRange.EndDate)
	assert.True(t, got.DateRange.EndDate.Equal(*first.DateRange.EndDate))
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))

	list, err := s.ListEvents(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "second", list[1].Name)

	require.NoError(t, s.DeleteEvent(ctx, userID, first.ID))
	_, err = s.GetEvent(ctx, userID, first.ID)
	assert.True(t, storage.IsNotFound(err), "got %v", err)

	err = s.DeleteEvent(ctx, userID, first.ID)
	assert.True(t, storage.IsNotFound(err), "got %v", err)

	empty, err := s.ListEvents(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testEventOwnership(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	owner, other := uuid.NewString(), uuid.NewString()

	ev := newEvent(owner, "private", time.Now().UTC())
	require.NoError(t, s.CreateEvent(ctx, ev))

	_, err := s.GetEvent(ctx, other, ev.ID)
	assert.True(t, storage.IsNotFound(err), "got %v", err)

	err = s.DeleteEvent(ctx, other, ev.ID)
	assert.True(t, storage.IsNotFound(err), "got %v", err)

	_, err = s.GetEvent(ctx, owner, ev.ID)
	assert.NoError(t, err)
}

func testAvatars(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	userID := uuid.NewString()

	_, err := s.SaveProfile(ctx, &storage.Profile{UserID: userID, Email: "dave@example.com"})
	require.NoError(t, err)

	_, err = s.GetAvatar(ctx, userID)
	assert.True(t, storage.IsNotFound(err), "got %v", err)

	path, err := s.PutAvatar(ctx, userID, "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, storage.AvatarPath(userID), path)

	avatar, err := s.GetAvatar(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", avatar.ContentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, avatar.Data)

	profile, err := s.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, path, profile.AvatarURL)
	assert.Equal(t, "dave", profile.DisplayName)

	_, err = s.PutAvatar(ctx, userID, "image/png", nil)
	assert.True(t, storage.IsType(err, storage.ErrInvalidInput), "got %v", err)
}
