package recurrence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
)

// DefaultMaxOccurrences bounds every expansion unless configured otherwise
const DefaultMaxOccurrences = 100

// MaxInterval is the largest accepted interval. It keeps every step, and a
// full capped series, well inside the range of time.Time.
const MaxInterval = 10000

// MaxYear is the last year occurrences are produced in; RFC 3339 has no
// later years. A series that reaches it ends there without being truncated.
const MaxYear = 9999

var (
	// ErrUnsupportedFrequency is returned for a recurrence type outside daily/weekly/monthly/yearly
	ErrUnsupportedFrequency = errors.New("unsupported recurrence type")
	// ErrInvalidInterval is returned when the interval is outside 1..MaxInterval
	ErrInvalidInterval = errors.New("interval must be between 1 and 10000")
	// ErrInvalidPattern is returned when a type-specific modifier is out of range
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	// ErrInvalidRange is returned when the date range has no start date
	ErrInvalidRange = errors.New("invalid date range")
)

// Frequency is the unit an event repeats in
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Valid reports whether f is one of the four recognized frequencies
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// Pattern describes how an event repeats.
//
// DayOfMonth and MonthOfYear carry explicit presence so that MonthOfYear 0
// (January) is distinguishable from "not set". Modifiers that do not apply
// to Type are ignored.
type Pattern struct {
	Type        Frequency
	Interval    int
	DaysOfWeek  []int          // 0 = Sunday, weekly only
	DayOfMonth  mo.Option[int] // 1..31, monthly and yearly
	MonthOfYear mo.Option[int] // 0..11 (0 = January), yearly only
}

// DateRange bounds an expansion. EndDate is inclusive and optional.
type DateRange struct {
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// Expansion is the ordered result of expanding a pattern over a range
type Expansion struct {
	Dates []time.Time
	// Truncated is set when the occurrence cap stopped expansion while the
	// range still allowed further occurrences.
	Truncated bool
}

// Includes reports whether any occurrence falls on the same calendar day as day
func (e Expansion) Includes(day time.Time) bool {
	y, m, d := day.Date()
	for _, t := range e.Dates {
		ty, tm, td := t.Date()
		if ty == y && tm == m && td == d {
			return true
		}
	}
	return false
}

// Validate checks the pattern fields that are relevant to its type
func (p Pattern) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedFrequency, string(p.Type))
	}
	if p.Interval < 1 || p.Interval > MaxInterval {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, p.Interval)
	}

	switch p.Type {
	case Weekly:
		for _, d := range p.DaysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: day of week %d out of range 0-6", ErrInvalidPattern, d)
			}
		}
	case Monthly:
		if err := validateDayOfMonth(p.DayOfMonth); err != nil {
			return err
		}
	case Yearly:
		if err := validateDayOfMonth(p.DayOfMonth); err != nil {
			return err
		}
		if m, ok := p.MonthOfYear.Get(); ok && (m < 0 || m > 11) {
			return fmt.Errorf("%w: month of year %d out of range 0-11", ErrInvalidPattern, m)
		}
	}
	return nil
}

func validateDayOfMonth(opt mo.Option[int]) error {
	if d, ok := opt.Get(); ok && (d < 1 || d > 31) {
		return fmt.Errorf("%w: day of month %d out of range 1-31", ErrInvalidPattern, d)
	}
	return nil
}

// ParseDate accepts an RFC 3339 timestamp or a YYYY-MM-DD date, the latter
// at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// UnmarshalJSON reads startDate and endDate with ParseDate. Absent and null
// dates are left unset.
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var wire struct {
		StartDate *string `json:"startDate"`
		EndDate   *string `json:"endDate"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var out DateRange
	if wire.StartDate != nil {
		t, err := ParseDate(*wire.StartDate)
		if err != nil {
			return fmt.Errorf("startDate: %w", err)
		}
		out.StartDate = t
	}
	if wire.EndDate != nil {
		t, err := ParseDate(*wire.EndDate)
		if err != nil {
			return fmt.Errorf("endDate: %w", err)
		}
		out.EndDate = &t
	}
	*r = out
	return nil
}

// Validate checks that the range has a start date
func (r DateRange) Validate() error {
	if r.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidRange)
	}
	return nil
}

// hasWeekday reports whether wd is one of the selected days of week
func (p Pattern) hasWeekday(wd time.Weekday) bool {
	for _, d := range p.DaysOfWeek {
		if d == int(wd) {
			return true
		}
	}
	return false
}

// firstWeekday returns the earliest selected day of week
func (p Pattern) firstWeekday() int {
	first := 6
	for _, d := range p.DaysOfWeek {
		first = min(first, d)
	}
	return first
}

// patternJSON is the wire form used by stored and imported documents
type patternJSON struct {
	Type        Frequency `json:"type"`
	Interval    int       `json:"interval"`
	DaysOfWeek  []int     `json:"daysOfWeek,omitempty"`
	DayOfMonth  *int      `json:"dayOfMonth,omitempty"`
	MonthOfYear *int      `json:"monthOfYear,omitempty"`
}

// MarshalJSON omits modifiers that are not set
func (p Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(patternJSON{
		Type:        p.Type,
		Interval:    p.Interval,
		DaysOfWeek:  p.DaysOfWeek,
		DayOfMonth:  optionToPointer(p.DayOfMonth),
		MonthOfYear: optionToPointer(p.MonthOfYear),
	})
}

// UnmarshalJSON treats absent and null modifiers as not set and any number,
// zero included, as set.
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var wire patternJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = Pattern{
		Type:        wire.Type,
		Interval:    wire.Interval,
		DaysOfWeek:  wire.DaysOfWeek,
		DayOfMonth:  pointerToOption(wire.DayOfMonth),
		MonthOfYear: pointerToOption(wire.MonthOfYear),
	}
	return nil
}

func optionToPointer(opt mo.Option[int]) *int {
	if v, ok := opt.Get(); ok {
		return &v
	}
	return nil
}

func pointerToOption(v *int) mo.Option[int] {
	if v == nil {
		return mo.None[int]()
	}
	return mo.Some(*v)
}
