package event

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/recurcal/recurrence"
)

// ProductID identifies calendars produced by this package
const ProductID = "-//Recurcal//Go Recurring Events//EN"

// ToICS renders e as a VCALENDAR with a single VEVENT.
// Open-ended events carry COUNT=limit in their RRULE.
func ToICS(e *Event, limit int) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, e.ID)
	vevent.Props.SetText(ical.PropSummary, e.Name)
	if e.Description != "" {
		vevent.Props.SetText(ical.PropDescription, e.Description)
	}

	stamp := e.CreatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if err := recurrence.ApplyToComponent(vevent.Component, e.Recurrence, e.DateRange, limit); err != nil {
		return nil, fmt.Errorf("failed to encode recurrence: %w", err)
	}

	cal.Children = append(cal.Children, vevent.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// FromICS reads the single VEVENT of an iCalendar file into a document.
// SUMMARY is required; DESCRIPTION may be empty.
func FromICS(data []byte) (Document, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return Document{}, fmt.Errorf("%w: failed to decode calendar: %v", ErrInvalidFormat, err)
	}

	events := cal.Events()
	if len(events) == 0 {
		return Document{}, fmt.Errorf("%w: no events found in calendar", ErrInvalidFormat)
	}
	if len(events) > 1 {
		return Document{}, fmt.Errorf("%w: multiple events found in calendar", ErrInvalidFormat)
	}
	vevent := events[0]

	name, err := vevent.Props.Text(ical.PropSummary)
	if err != nil || name == "" {
		return Document{}, fmt.Errorf("%w: event has no SUMMARY", ErrInvalidFormat)
	}
	description, _ := vevent.Props.Text(ical.PropDescription)

	pattern, rng, err := recurrence.ExtractFromComponent(vevent.Component)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	return Document{
		Name:        name,
		Description: description,
		Recurrence:  &pattern,
		DateRange:   &rng,
	}, nil
}
