// Package event holds the stored event document and its import and export
// formats: plain JSON, share links and iCalendar.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/recurcal/recurrence"
)

// Document is the portable form of an event, as exported, shared and imported
type Document struct {
	Name        string                `json:"name" validate:"required"`
	Description string                `json:"description" validate:"required"`
	Recurrence  *recurrence.Pattern   `json:"recurrence" validate:"required"`
	DateRange   *recurrence.DateRange `json:"dateRange" validate:"required"`
}

// Event is a document saved on behalf of a user
type Event struct {
	ID          string               `json:"id"`
	UserID      string               `json:"userId"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Recurrence  recurrence.Pattern   `json:"recurrence"`
	DateRange   recurrence.DateRange `json:"dateRange"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// New creates an event owned by userID from doc.
// doc must have passed Decode or carry non-nil Recurrence and DateRange.
func New(userID string, doc Document) *Event {
	return &Event{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        doc.Name,
		Description: doc.Description,
		Recurrence:  *doc.Recurrence,
		DateRange:   *doc.DateRange,
		CreatedAt:   time.Now().UTC(),
	}
}

// Document returns the portable form of e, without ownership fields
func (e *Event) Document() Document {
	pattern := e.Recurrence
	rng := e.DateRange
	return Document{
		Name:        e.Name,
		Description: e.Description,
		Recurrence:  &pattern,
		DateRange:   &rng,
	}
}

// Clone returns a deep copy of e
func (e *Event) Clone() *Event {
	c := *e
	if e.Recurrence.DaysOfWeek != nil {
		c.Recurrence.DaysOfWeek = append([]int(nil), e.Recurrence.DaysOfWeek...)
	}
	if e.DateRange.EndDate != nil {
		end := *e.DateRange.EndDate
		c.DateRange.EndDate = &end
	}
	return &c
}

// Validate checks that the event's recurrence can be expanded
func (d Document) Validate() error {
	if d.Recurrence == nil || d.DateRange == nil {
		return ErrInvalidFormat
	}
	if err := d.Recurrence.Validate(); err != nil {
		return err
	}
	return d.DateRange.Validate()
}
