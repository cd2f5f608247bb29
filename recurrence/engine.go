package recurrence

import (
	"fmt"
	"time"
)

// Engine expands recurrence patterns into occurrence dates.
// An Engine is safe for concurrent use.
type Engine struct {
	cache  *ExpansionCache
	config EngineConfig
}

// NewEngine creates an engine with the default cap and rollover policy and no cache
func NewEngine() *Engine {
	return NewEngineWithConfig(DisabledCacheConfig)
}

var defaultEngine = NewEngine()

// Expand expands pattern over rng with the default engine
func Expand(pattern Pattern, rng DateRange) (Expansion, error) {
	return defaultEngine.Expand(pattern, rng)
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.config
}

// CacheStats reports cache contents; ok is false when caching is disabled
func (e *Engine) CacheStats() (stats CacheStats, ok bool) {
	if e.cache == nil {
		return CacheStats{}, false
	}
	return e.cache.Stats(), true
}

// Close releases the engine cache, if any
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Expand produces the occurrences of pattern within rng using the engine's cap
func (e *Engine) Expand(pattern Pattern, rng DateRange) (Expansion, error) {
	return e.ExpandWithOptions(pattern, rng, ExpansionOptions{})
}

// ExpandWithOptions produces the occurrences of pattern within rng.
//
// The first occurrence is always rng.StartDate. Occurrences after
// rng.EndDate are excluded, and at most MaxOccurrences are returned; when
// the cap cuts the series short the result is marked Truncated.
func (e *Engine) ExpandWithOptions(pattern Pattern, rng DateRange, opts ExpansionOptions) (Expansion, error) {
	if err := pattern.Validate(); err != nil {
		return Expansion{}, err
	}
	if err := rng.Validate(); err != nil {
		return Expansion{}, err
	}

	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = e.config.MaxOccurrences
	}

	if e.cache != nil {
		key := e.cache.key(pattern, rng, limit, e.config.Overflow)
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
		result := e.expand(pattern, rng, limit)
		e.cache.Set(key, result)
		return result.clone(), nil
	}

	return e.expand(pattern, rng, limit), nil
}

func (e *Engine) expand(pattern Pattern, rng DateRange, limit int) Expansion {
	inRange := func(t time.Time) bool {
		if t.Year() > MaxYear {
			return false
		}
		return rng.EndDate == nil || !t.After(*rng.EndDate)
	}

	dates := make([]time.Time, 0, min(limit, 16))
	current := rng.StartDate
	count := 0
	for inRange(current) && count < limit {
		dates = append(dates, current)
		current = e.advance(current, rng.StartDate, pattern)
		count++
	}

	return Expansion{
		Dates:     dates,
		Truncated: count == limit && inRange(current),
	}
}

// advance returns the occurrence following current
func (e *Engine) advance(current, start time.Time, p Pattern) time.Time {
	switch p.Type {
	case Daily:
		return current.AddDate(0, 0, p.Interval)

	case Weekly:
		if len(p.DaysOfWeek) == 0 {
			return current.AddDate(0, 0, 7*p.Interval)
		}
		return nextSelectedWeekday(current, start, p)

	case Monthly:
		day := current.Day()
		if d, ok := p.DayOfMonth.Get(); ok {
			day = d
		}
		return e.dateOf(current.Year(), current.Month()+time.Month(p.Interval), day, current)

	case Yearly:
		month, day := current.Month(), current.Day()
		m, hasMonth := p.MonthOfYear.Get()
		d, hasDay := p.DayOfMonth.Get()
		if hasMonth && hasDay {
			month, day = time.Month(m+1), d
		}
		return e.dateOf(current.Year()+p.Interval, month, day, current)
	}

	// Validate rejects every other type before expansion starts
	panic(fmt.Sprintf("recurrence: advance called with unsupported type %q", p.Type))
}

// dateOf builds year/month/day with the clock and location of ref, applying
// the overflow policy. month may exceed 12; it is normalized into later years.
func (e *Engine) dateOf(year int, month time.Month, day int, ref time.Time) time.Time {
	if e.config.Overflow == OverflowClamp {
		if last := daysIn(year, month); day > last {
			day = last
		}
	}
	hour, minute, sec := ref.Clock()
	return time.Date(year, month, day, hour, minute, sec, ref.Nanosecond(), ref.Location())
}

// nextSelectedWeekday returns the first selected weekday after current in a
// week that is a multiple of Interval weeks after the week containing start.
// Weeks begin on Sunday.
func nextSelectedWeekday(current, start time.Time, p Pattern) time.Time {
	week := weeksBetween(weekStart(start), weekStart(current))
	today := int(current.Weekday())

	if week%p.Interval == 0 {
		for wd := today + 1; wd < 7; wd++ {
			if p.hasWeekday(time.Weekday(wd)) {
				return current.AddDate(0, 0, wd-today)
			}
		}
	}

	next := (week/p.Interval + 1) * p.Interval
	return current.AddDate(0, 0, 7*(next-week)-today+p.firstWeekday())
}

// daysIn returns the number of days in month of year; month may be out of 1..12
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// civilDay strips clock and zone, leaving the calendar date at midnight UTC
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekStart(t time.Time) time.Time {
	return civilDay(t).AddDate(0, 0, -int(t.Weekday()))
}

// weeksBetween counts whole weeks between two week starts. They may be
// further apart than a time.Duration can hold.
func weeksBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / (7 * 24 * 60 * 60))
}
