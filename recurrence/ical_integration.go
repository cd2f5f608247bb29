package recurrence

import (
	"fmt"

	"github.com/emersion/go-ical"
)

// ExtractFromComponent reads DTSTART and RRULE from an iCal component.
// A component without RRULE is treated as a single daily occurrence that
// ends on its start date.
func ExtractFromComponent(comp *ical.Component) (Pattern, DateRange, error) {
	start, err := comp.Props.DateTime(ical.PropDateTimeStart, nil)
	if err != nil {
		return Pattern{}, DateRange{}, fmt.Errorf("%w: invalid DTSTART: %v", ErrInvalidRange, err)
	}
	if start.IsZero() {
		return Pattern{}, DateRange{}, fmt.Errorf("%w: missing DTSTART", ErrInvalidRange)
	}

	rruleProp := comp.Props.Get(ical.PropRecurrenceRule)
	if rruleProp == nil || rruleProp.Value == "" {
		end := start
		return Pattern{Type: Daily, Interval: 1}, DateRange{StartDate: start, EndDate: &end}, nil
	}

	parsed, err := FromRRule(rruleProp.Value)
	if err != nil {
		return Pattern{}, DateRange{}, err
	}

	return parsed.Pattern, DateRange{StartDate: start, EndDate: parsed.Until}, nil
}

// ApplyToComponent writes DTSTART and RRULE for pattern over rng into comp.
// Open-ended ranges carry COUNT=limit so other clients see the same bound.
func ApplyToComponent(comp *ical.Component, p Pattern, rng DateRange, limit int) error {
	value, err := ToRRule(p, rng, limit)
	if err != nil {
		return err
	}

	comp.Props.SetDateTime(ical.PropDateTimeStart, rng.StartDate)

	prop := ical.NewProp(ical.PropRecurrenceRule)
	prop.Value = value
	comp.Props.Set(prop)

	return nil
}
