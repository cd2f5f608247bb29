package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// rruleWeekdays is indexed by day of week, 0 = Sunday
var rruleWeekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ParsedRule is a pattern recovered from an RFC 5545 RRULE
type ParsedRule struct {
	Pattern Pattern
	Until   *time.Time // UNTIL, if present
	Count   int        // COUNT, 0 if absent
}

// ROption builds the rrule-go options closest to pattern over rng.
//
// RFC 5545 skips months that lack BYMONTHDAY instead of rolling over, so
// the rule is an interoperability aid for other calendar software; the
// engine remains the source of truth for occurrence dates.
func ROption(p Pattern, rng DateRange, limit int) (*rrule.ROption, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	opt := &rrule.ROption{
		Interval: p.Interval,
		Dtstart:  rng.StartDate,
	}

	switch p.Type {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		opt.Wkst = rrule.SU
		for _, d := range p.DaysOfWeek {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		if d, ok := p.DayOfMonth.Get(); ok {
			opt.Bymonthday = []int{d}
		}
	case Yearly:
		opt.Freq = rrule.YEARLY
		m, hasMonth := p.MonthOfYear.Get()
		d, hasDay := p.DayOfMonth.Get()
		if hasMonth && hasDay {
			opt.Bymonth = []int{m + 1}
			opt.Bymonthday = []int{d}
		}
	}

	// RFC 5545 forbids UNTIL together with COUNT
	if rng.EndDate != nil {
		opt.Until = *rng.EndDate
	} else if limit > 0 {
		opt.Count = limit
	}

	return opt, nil
}

// ToRRule renders pattern over rng as an RRULE value (without the "RRULE:" prefix)
func ToRRule(p Pattern, rng DateRange, limit int) (string, error) {
	opt, err := ROption(p, rng, limit)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// FromRRule parses an RRULE value into a pattern.
// Only constructs the engine can express are accepted.
func FromRRule(value string) (ParsedRule, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return ParsedRule{}, fmt.Errorf("failed to parse RRULE '%s': %w", value, err)
	}

	p := Pattern{Interval: opt.Interval}
	if p.Interval == 0 {
		p.Interval = 1
	}

	switch opt.Freq {
	case rrule.DAILY:
		p.Type = Daily
	case rrule.WEEKLY:
		p.Type = Weekly
		for _, wd := range opt.Byweekday {
			// rrule-go numbers weekdays from Monday
			p.DaysOfWeek = append(p.DaysOfWeek, (wd.Day()+1)%7)
		}
	case rrule.MONTHLY:
		p.Type = Monthly
		day, err := singleMonthDay(opt.Bymonthday)
		if err != nil {
			return ParsedRule{}, err
		}
		p.DayOfMonth = day
	case rrule.YEARLY:
		p.Type = Yearly
		day, err := singleMonthDay(opt.Bymonthday)
		if err != nil {
			return ParsedRule{}, err
		}
		switch len(opt.Bymonth) {
		case 0:
		case 1:
			p.MonthOfYear = mo.Some(opt.Bymonth[0] - 1)
		default:
			return ParsedRule{}, fmt.Errorf("%w: multiple BYMONTH values", ErrInvalidPattern)
		}
		p.DayOfMonth = day
	default:
		return ParsedRule{}, fmt.Errorf("%w: %v", ErrUnsupportedFrequency, opt.Freq)
	}

	if err := p.Validate(); err != nil {
		return ParsedRule{}, err
	}

	parsed := ParsedRule{Pattern: p, Count: opt.Count}
	if !opt.Until.IsZero() {
		until := opt.Until
		parsed.Until = &until
	}
	return parsed, nil
}

func singleMonthDay(days []int) (mo.Option[int], error) {
	switch len(days) {
	case 0:
		return mo.None[int](), nil
	case 1:
		if days[0] < 1 {
			return mo.None[int](), fmt.Errorf("%w: BYMONTHDAY %d not supported", ErrInvalidPattern, days[0])
		}
		return mo.Some(days[0]), nil
	default:
		return mo.None[int](), fmt.Errorf("%w: multiple BYMONTHDAY values", ErrInvalidPattern)
	}
}
