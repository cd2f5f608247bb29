package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/recurcal/event"
	"github.com/cyp0633/recurcal/recurrence"
	"github.com/cyp0633/recurcal/storage"
	"github.com/cyp0633/recurcal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New()
	})
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	end := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	ev := &event.Event{
		ID:     "ev-1",
		UserID: "user-1",
		Name:   "gym",
		Recurrence: recurrence.Pattern{
			Type:       recurrence.Weekly,
			Interval:   1,
			DaysOfWeek: []int{1, 4},
		},
		DateRange: recurrence.DateRange{StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), EndDate: &end},
	}
	require.NoError(t, s.CreateEvent(ctx, ev))

	// Mutating the caller's value must not reach the store
	ev.Recurrence.DaysOfWeek[0] = 6
	got, err := s.GetEvent(ctx, "user-1", "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, got.Recurrence.DaysOfWeek)

	// Nor must mutating a returned value
	got.DateRange.EndDate = nil
	again, err := s.GetEvent(ctx, "user-1", "ev-1")
	require.NoError(t, err)
	assert.NotNil(t, again.DateRange.EndDate)
}
