package recurrence

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func TestExpand_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		pattern   Pattern
		rng       DateRange
		expected  []time.Time
		truncated bool
	}{
		{
			name:    "daily every day",
			pattern: Pattern{Type: Daily, Interval: 1},
			rng:     DateRange{StartDate: day(2025, 1, 1), EndDate: ptr(day(2025, 1, 5))},
			expected: []time.Time{
				day(2025, 1, 1), day(2025, 1, 2), day(2025, 1, 3), day(2025, 1, 4), day(2025, 1, 5),
			},
		},
		{
			name:    "weekly on Monday and Wednesday",
			pattern: Pattern{Type: Weekly, Interval: 1, DaysOfWeek: []int{1, 3}},
			rng:     DateRange{StartDate: day(2025, 1, 6), EndDate: ptr(day(2025, 1, 20))},
			expected: []time.Time{
				day(2025, 1, 6), day(2025, 1, 8), day(2025, 1, 13), day(2025, 1, 15), day(2025, 1, 20),
			},
		},
		{
			name:     "single-day range",
			pattern:  Pattern{Type: Weekly, Interval: 3},
			rng:      DateRange{StartDate: day(2025, 4, 9), EndDate: ptr(day(2025, 4, 9))},
			expected: []time.Time{day(2025, 4, 9)},
		},
		{
			name:     "end before start yields nothing",
			pattern:  Pattern{Type: Daily, Interval: 1},
			rng:      DateRange{StartDate: day(2025, 4, 9), EndDate: ptr(day(2025, 4, 8))},
			expected: []time.Time{},
		},
		{
			name:    "every other week on Monday and Wednesday",
			pattern: Pattern{Type: Weekly, Interval: 2, DaysOfWeek: []int{3, 1}},
			rng:     DateRange{StartDate: day(2025, 1, 6), EndDate: ptr(day(2025, 2, 5))},
			expected: []time.Time{
				day(2025, 1, 6), day(2025, 1, 8), day(2025, 1, 20), day(2025, 1, 22), day(2025, 2, 3), day(2025, 2, 5),
			},
		},
		{
			name:    "weekly start outside selected days",
			pattern: Pattern{Type: Weekly, Interval: 1, DaysOfWeek: []int{1}},
			rng:     DateRange{StartDate: day(2025, 1, 5), EndDate: ptr(day(2025, 1, 13))},
			expected: []time.Time{
				day(2025, 1, 5), day(2025, 1, 6), day(2025, 1, 13),
			},
		},
		{
			name:    "weekly without day filter",
			pattern: Pattern{Type: Weekly, Interval: 2},
			rng:     DateRange{StartDate: day(2025, 1, 1), EndDate: ptr(day(2025, 2, 1))},
			expected: []time.Time{
				day(2025, 1, 1), day(2025, 1, 15), day(2025, 1, 29),
			},
		},
		{
			name:    "monthly keeps start day",
			pattern: Pattern{Type: Monthly, Interval: 2},
			rng:     DateRange{StartDate: day(2025, 11, 15), EndDate: ptr(day(2026, 6, 1))},
			expected: []time.Time{
				day(2025, 11, 15), day(2026, 1, 15), day(2026, 3, 15), day(2026, 5, 15),
			},
		},
		{
			name:    "yearly forces January",
			pattern: Pattern{Type: Yearly, Interval: 1, MonthOfYear: mo.Some(0), DayOfMonth: mo.Some(10)},
			rng:     DateRange{StartDate: day(2025, 3, 15), EndDate: ptr(day(2027, 12, 31))},
			expected: []time.Time{
				day(2025, 3, 15), day(2026, 1, 10), day(2027, 1, 10),
			},
		},
		{
			name:    "yearly needs both month and day to force",
			pattern: Pattern{Type: Yearly, Interval: 1, DayOfMonth: mo.Some(10)},
			rng:     DateRange{StartDate: day(2025, 3, 15), EndDate: ptr(day(2027, 12, 31))},
			expected: []time.Time{
				day(2025, 3, 15), day(2026, 3, 15), day(2027, 3, 15),
			},
		},
		{
			name:    "leap day rolls over to March",
			pattern: Pattern{Type: Yearly, Interval: 1},
			rng:     DateRange{StartDate: day(2024, 2, 29), EndDate: ptr(day(2026, 12, 31))},
			expected: []time.Time{
				day(2024, 2, 29), day(2025, 3, 1), day(2026, 3, 1),
			},
		},
	}

	engine := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Expand(tt.pattern, tt.rng)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Dates)
			assert.Equal(t, tt.truncated, result.Truncated)
		})
	}
}

func TestExpand_MonthlyForcedDayOverflow(t *testing.T) {
	pattern := Pattern{Type: Monthly, Interval: 1, DayOfMonth: mo.Some(31)}
	rng := DateRange{StartDate: day(2025, 1, 31)}

	t.Run("rollover", func(t *testing.T) {
		result, err := NewEngine().Expand(pattern, rng)
		require.NoError(t, err)
		require.Len(t, result.Dates, 100)
		assert.Equal(t, []time.Time{
			day(2025, 1, 31), day(2025, 3, 3), day(2025, 5, 1), day(2025, 7, 1),
			day(2025, 8, 31), day(2025, 10, 1), day(2025, 12, 1), day(2026, 1, 31),
		}, result.Dates[:8])
	})

	t.Run("clamp", func(t *testing.T) {
		engine := NewEngineWithConfig(EngineConfig{Overflow: OverflowClamp})
		result, err := engine.Expand(pattern, rng)
		require.NoError(t, err)
		require.Len(t, result.Dates, 100)
		assert.Equal(t, []time.Time{
			day(2025, 1, 31), day(2025, 2, 28), day(2025, 3, 31), day(2025, 4, 30), day(2025, 5, 31),
		}, result.Dates[:5])
	})

	t.Run("clamp leap year", func(t *testing.T) {
		engine := NewEngineWithConfig(EngineConfig{Overflow: OverflowClamp})
		result, err := engine.Expand(Pattern{Type: Yearly, Interval: 1}, DateRange{
			StartDate: day(2024, 2, 29),
			EndDate:   ptr(day(2026, 12, 31)),
		})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(2024, 2, 29), day(2025, 2, 28), day(2026, 2, 28)}, result.Dates)
	})
}

func TestExpand_Cap(t *testing.T) {
	t.Run("open range stops at 100", func(t *testing.T) {
		result, err := Expand(Pattern{Type: Daily, Interval: 1}, DateRange{StartDate: day(2025, 1, 1)})
		require.NoError(t, err)
		assert.Len(t, result.Dates, 100)
		assert.True(t, result.Truncated)
		assert.Equal(t, day(2025, 4, 10), result.Dates[99])
	})

	t.Run("end on the hundredth occurrence is not truncated", func(t *testing.T) {
		result, err := Expand(Pattern{Type: Daily, Interval: 1}, DateRange{
			StartDate: day(2025, 1, 1),
			EndDate:   ptr(day(2025, 4, 10)),
		})
		require.NoError(t, err)
		assert.Len(t, result.Dates, 100)
		assert.False(t, result.Truncated)
	})

	t.Run("end past the cap is truncated", func(t *testing.T) {
		result, err := Expand(Pattern{Type: Daily, Interval: 1}, DateRange{
			StartDate: day(2025, 1, 1),
			EndDate:   ptr(day(2030, 1, 1)),
		})
		require.NoError(t, err)
		assert.Len(t, result.Dates, 100)
		assert.True(t, result.Truncated)
	})

	t.Run("per call limit", func(t *testing.T) {
		result, err := NewEngine().ExpandWithOptions(
			Pattern{Type: Weekly, Interval: 1},
			DateRange{StartDate: day(2025, 1, 1)},
			ExpansionOptions{MaxOccurrences: 5},
		)
		require.NoError(t, err)
		assert.Len(t, result.Dates, 5)
		assert.True(t, result.Truncated)
	})

	t.Run("engine limit", func(t *testing.T) {
		engine := NewEngineWithConfig(EngineConfig{MaxOccurrences: 12})
		result, err := engine.Expand(Pattern{Type: Monthly, Interval: 1}, DateRange{StartDate: day(2025, 1, 1)})
		require.NoError(t, err)
		assert.Len(t, result.Dates, 12)
	})
}

func TestExpand_Properties(t *testing.T) {
	patterns := []Pattern{
		{Type: Daily, Interval: 1},
		{Type: Daily, Interval: 13},
		{Type: Weekly, Interval: 1},
		{Type: Weekly, Interval: 3, DaysOfWeek: []int{0, 6}},
		{Type: Weekly, Interval: 1, DaysOfWeek: []int{0, 1, 2, 3, 4, 5, 6}},
		{Type: Monthly, Interval: 1},
		{Type: Monthly, Interval: 5, DayOfMonth: mo.Some(30)},
		{Type: Yearly, Interval: 1},
		{Type: Yearly, Interval: 2, MonthOfYear: mo.Some(1), DayOfMonth: mo.Some(29)},
	}
	starts := []time.Time{
		day(2025, 1, 31),
		time.Date(2024, 2, 29, 18, 45, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 23, 59, 59, 0, time.FixedZone("UTC+8", 8*3600)),
	}

	for _, policy := range []OverflowPolicy{OverflowRollover, OverflowClamp} {
		engine := NewEngineWithConfig(EngineConfig{Overflow: policy})
		for _, p := range patterns {
			for _, start := range starts {
				name := fmt.Sprintf("%s/%s/%d/%s", policy, p.Type, p.Interval, start.Format(time.RFC3339))
				t.Run(name, func(t *testing.T) {
					open, err := engine.Expand(p, DateRange{StartDate: start})
					require.NoError(t, err)
					require.Len(t, open.Dates, DefaultMaxOccurrences)
					assert.True(t, open.Truncated)
					assert.True(t, open.Dates[0].Equal(start))
					for i := 1; i < len(open.Dates); i++ {
						require.True(t, open.Dates[i].After(open.Dates[i-1]),
							"occurrence %d (%s) not after %s", i, open.Dates[i], open.Dates[i-1])
					}

					end := open.Dates[len(open.Dates)/3].Add(time.Hour)
					bounded, err := engine.Expand(p, DateRange{StartDate: start, EndDate: &end})
					require.NoError(t, err)
					require.NotEmpty(t, bounded.Dates)
					assert.False(t, bounded.Truncated)
					for _, d := range bounded.Dates {
						assert.False(t, d.After(end))
					}
					last := bounded.Dates[len(bounded.Dates)-1]
					assert.True(t, engine.advance(last, start, p).After(end))
				})
			}
		}
	}
}

func TestExpand_LargeIntervals(t *testing.T) {
	start := time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC)
	patterns := []Pattern{
		{Type: Daily, Interval: MaxInterval},
		{Type: Weekly, Interval: MaxInterval},
		{Type: Weekly, Interval: MaxInterval, DaysOfWeek: []int{1, 3}},
		{Type: Monthly, Interval: MaxInterval, DayOfMonth: mo.Some(31)},
		{Type: Yearly, Interval: MaxInterval},
	}

	for _, p := range patterns {
		t.Run(fmt.Sprintf("%s/%v", p.Type, p.DaysOfWeek), func(t *testing.T) {
			began := time.Now()
			result, err := Expand(p, DateRange{StartDate: start})
			require.NoError(t, err)
			assert.Less(t, time.Since(began), time.Second)

			require.NotEmpty(t, result.Dates)
			assert.True(t, result.Dates[0].Equal(start))
			for i := 1; i < len(result.Dates); i++ {
				require.True(t, result.Dates[i].After(result.Dates[i-1]),
					"occurrence %d (%s) not after %s", i, result.Dates[i], result.Dates[i-1])
			}
			for _, d := range result.Dates {
				assert.LessOrEqual(t, d.Year(), MaxYear)
			}
			if len(result.Dates) < DefaultMaxOccurrences {
				assert.False(t, result.Truncated, "series ending at the last year is not truncated")
			}
		})
	}

	t.Run("weekly days jump to the next active week", func(t *testing.T) {
		p := Pattern{Type: Weekly, Interval: MaxInterval, DaysOfWeek: []int{3, 1}}
		result, err := NewEngineWithConfig(EngineConfig{MaxOccurrences: 4}).Expand(p, DateRange{StartDate: start})
		require.NoError(t, err)

		nextWeek := day(2025, time.January, 5).AddDate(0, 0, 7*MaxInterval)
		expected := []time.Time{
			start,
			start.AddDate(0, 0, 2),
			nextWeek.AddDate(0, 0, 1).Add(7 * time.Hour),
			nextWeek.AddDate(0, 0, 3).Add(7 * time.Hour),
		}
		assert.Equal(t, expected, result.Dates)
	})
}

// scanWeekly walks day by day, keeping selected weekdays in weeks that are
// a multiple of p.Interval after the week of start
func scanWeekly(start time.Time, p Pattern, n int) []time.Time {
	dates := []time.Time{start}
	anchor := weekStart(start)
	for d := start.AddDate(0, 0, 1); len(dates) < n; d = d.AddDate(0, 0, 1) {
		if p.hasWeekday(d.Weekday()) && weeksBetween(anchor, weekStart(d))%p.Interval == 0 {
			dates = append(dates, d)
		}
	}
	return dates
}

func TestExpand_WeeklyDaysMatchesDayScan(t *testing.T) {
	daySets := [][]int{{0}, {6}, {1, 3}, {0, 6}, {2, 4, 5}, {0, 1, 2, 3, 4, 5, 6}}
	starts := []time.Time{
		day(2025, time.January, 5),
		day(2025, time.January, 8),
		time.Date(2024, time.December, 28, 22, 15, 0, 0, time.FixedZone("UTC-3", -3*3600)),
	}

	for interval := 1; interval <= 4; interval++ {
		for _, days := range daySets {
			for _, start := range starts {
				p := Pattern{Type: Weekly, Interval: interval, DaysOfWeek: days}
				t.Run(fmt.Sprintf("%d/%v/%s", interval, days, start.Format(time.DateOnly)), func(t *testing.T) {
					result, err := NewEngineWithConfig(EngineConfig{MaxOccurrences: 40}).Expand(p, DateRange{StartDate: start})
					require.NoError(t, err)
					assert.Equal(t, scanWeekly(start, p, 40), result.Dates)
				})
			}
		}
	}
}

func TestExpand_PreservesClock(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	start := time.Date(2025, 3, 8, 9, 30, 15, 0, loc)

	result, err := Expand(Pattern{Type: Daily, Interval: 2}, DateRange{StartDate: start})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 10, 9, 30, 15, 0, loc), result.Dates[1])
	assert.Equal(t, loc, result.Dates[1].Location())
}

func TestExpand_Validation(t *testing.T) {
	start := DateRange{StartDate: day(2025, 1, 1)}

	tests := []struct {
		name    string
		pattern Pattern
		rng     DateRange
		wantErr error
	}{
		{"unknown type", Pattern{Type: "hourly", Interval: 1}, start, ErrUnsupportedFrequency},
		{"empty type", Pattern{Interval: 1}, start, ErrUnsupportedFrequency},
		{"zero interval", Pattern{Type: Daily}, start, ErrInvalidInterval},
		{"negative interval", Pattern{Type: Monthly, Interval: -2}, start, ErrInvalidInterval},
		{"interval above maximum", Pattern{Type: Weekly, Interval: MaxInterval + 1, DaysOfWeek: []int{1}}, start, ErrInvalidInterval},
		{"interval overflowing int", Pattern{Type: Daily, Interval: math.MaxInt64 / 2}, start, ErrInvalidInterval},
		{"weekday out of range", Pattern{Type: Weekly, Interval: 1, DaysOfWeek: []int{7}}, start, ErrInvalidPattern},
		{"day of month zero", Pattern{Type: Monthly, Interval: 1, DayOfMonth: mo.Some(0)}, start, ErrInvalidPattern},
		{"month out of range", Pattern{Type: Yearly, Interval: 1, MonthOfYear: mo.Some(12), DayOfMonth: mo.Some(1)}, start, ErrInvalidPattern},
		{"missing start", Pattern{Type: Daily, Interval: 1}, DateRange{}, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Expand(tt.pattern, tt.rng)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, result.Dates)
		})
	}
}

func TestExpand_IgnoresIrrelevantModifiers(t *testing.T) {
	pattern := Pattern{
		Type:        Daily,
		Interval:    1,
		DaysOfWeek:  []int{42},
		DayOfMonth:  mo.Some(99),
		MonthOfYear: mo.Some(-1),
	}
	result, err := Expand(pattern, DateRange{StartDate: day(2025, 1, 1), EndDate: ptr(day(2025, 1, 3))})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 1, 1), day(2025, 1, 2), day(2025, 1, 3)}, result.Dates)
}

func TestExpand_MatchesRRule(t *testing.T) {
	start := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	patterns := []Pattern{
		{Type: Daily, Interval: 3},
		{Type: Weekly, Interval: 2},
		{Type: Weekly, Interval: 1, DaysOfWeek: []int{1, 3}},
		{Type: Monthly, Interval: 1},
		{Type: Yearly, Interval: 1},
	}

	for _, p := range patterns {
		t.Run(fmt.Sprintf("%s/%d", p.Type, p.Interval), func(t *testing.T) {
			rng := DateRange{StartDate: start}
			opt, err := ROption(p, rng, 20)
			require.NoError(t, err)
			rule, err := rrule.NewRRule(*opt)
			require.NoError(t, err)

			result, err := NewEngineWithConfig(EngineConfig{MaxOccurrences: 20}).Expand(p, rng)
			require.NoError(t, err)

			expected := rule.All()
			require.Len(t, expected, len(result.Dates))
			for i := range expected {
				assert.True(t, expected[i].Equal(result.Dates[i]), "occurrence %d: %s != %s", i, expected[i], result.Dates[i])
			}
		})
	}
}

func TestEngine_CachedResultsMatch(t *testing.T) {
	cached := NewEngineWithConfig(DefaultEngineConfig)
	defer cached.Close()
	plain := NewEngine()

	pattern := Pattern{Type: Weekly, Interval: 1, DaysOfWeek: []int{2, 4}}
	rng := DateRange{StartDate: day(2025, 5, 1), EndDate: ptr(day(2025, 8, 1))}

	want, err := plain.Expand(pattern, rng)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := cached.Expand(pattern, rng)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		// Mutating a returned slice must not poison the cache
		got.Dates[0] = time.Time{}
	}
	assert.Equal(t, 1, cached.cache.Stats().TotalEntries)
}

func TestExpansion_Includes(t *testing.T) {
	result, err := Expand(Pattern{Type: Weekly, Interval: 1}, DateRange{
		StartDate: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		EndDate:   ptr(day(2025, 2, 1)),
	})
	require.NoError(t, err)

	assert.True(t, result.Includes(day(2025, 1, 13)))
	assert.False(t, result.Includes(day(2025, 1, 14)))
}

func TestParseOverflowPolicy(t *testing.T) {
	p, err := ParseOverflowPolicy("clamp")
	require.NoError(t, err)
	assert.Equal(t, OverflowClamp, p)

	p, err = ParseOverflowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OverflowRollover, p)

	_, err = ParseOverflowPolicy("wrap")
	assert.Error(t, err)
}
