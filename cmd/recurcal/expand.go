package main

import (
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"github.com/cyp0633/recurcal/recurrence"
)

type expandFlags struct {
	freq       string
	interval   int
	days       []int
	dayOfMonth int
	month      int
	start      string
	end        string
	max        int
	overflow   string
}

func newExpandCmd() *cobra.Command {
	var f expandFlags

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the occurrences of a recurrence pattern",
		Example: `  recurcal expand --type weekly --days 1,3 --start 2025-01-06 --end 2025-01-20
  recurcal expand --type yearly --month 0 --day-of-month 15 --start 2025-03-01 --max 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, rng, err := f.parse(cmd)
			if err != nil {
				return err
			}
			overflow, err := recurrence.ParseOverflowPolicy(f.overflow)
			if err != nil {
				return err
			}

			cfg := recurrence.DisabledCacheConfig
			cfg.Overflow = overflow
			engine := recurrence.NewEngineWithConfig(cfg)

			result, err := engine.ExpandWithOptions(pattern, rng, recurrence.ExpansionOptions{MaxOccurrences: f.max})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range result.Dates {
				fmt.Fprintln(out, d.Format(time.RFC3339))
			}
			if result.Truncated {
				fmt.Fprintf(cmd.ErrOrStderr(), "truncated after %d occurrences; use --max or --end to change the bound\n", len(result.Dates))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.freq, "type", "", "recurrence type: daily, weekly, monthly or yearly")
	flags.IntVar(&f.interval, "interval", 1, "repeat every N periods")
	flags.IntSliceVar(&f.days, "days", nil, "weekly: days of week, 0 = Sunday")
	flags.IntVar(&f.dayOfMonth, "day-of-month", 0, "monthly and yearly: day of month (1-31)")
	flags.IntVar(&f.month, "month", 0, "yearly: month of year, 0 = January")
	flags.StringVar(&f.start, "start", "", "first date, YYYY-MM-DD or RFC 3339")
	flags.StringVar(&f.end, "end", "", "last date inclusive, YYYY-MM-DD or RFC 3339")
	flags.IntVar(&f.max, "max", 0, fmt.Sprintf("occurrence cap (default %d)", recurrence.DefaultMaxOccurrences))
	flags.StringVar(&f.overflow, "overflow", recurrence.OverflowRollover.String(), "missing forced days: rollover or clamp")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

// parse turns the flags into a pattern; --day-of-month and --month are
// set only when given, so --month 0 means January.
func (f expandFlags) parse(cmd *cobra.Command) (recurrence.Pattern, recurrence.DateRange, error) {
	p := recurrence.Pattern{
		Type:       recurrence.Frequency(f.freq),
		Interval:   f.interval,
		DaysOfWeek: f.days,
	}
	if cmd.Flags().Changed("day-of-month") {
		p.DayOfMonth = mo.Some(f.dayOfMonth)
	}
	if cmd.Flags().Changed("month") {
		p.MonthOfYear = mo.Some(f.month)
	}
	if f.max < 0 {
		return p, recurrence.DateRange{}, fmt.Errorf("--max must not be negative, got %d", f.max)
	}

	start, err := recurrence.ParseDate(f.start)
	if err != nil {
		return p, recurrence.DateRange{}, fmt.Errorf("invalid --start: %w", err)
	}
	rng := recurrence.DateRange{StartDate: start}
	if f.end != "" {
		end, err := recurrence.ParseDate(f.end)
		if err != nil {
			return p, recurrence.DateRange{}, fmt.Errorf("invalid --end: %w", err)
		}
		rng.EndDate = &end
	}
	return p, rng, nil
}
