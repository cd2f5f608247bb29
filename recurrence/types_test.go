package recurrence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_JSONPresence(t *testing.T) {
	var p Pattern
	require.NoError(t, json.Unmarshal([]byte(`{"type":"yearly","interval":1,"dayOfMonth":10,"monthOfYear":0}`), &p))

	assert.Equal(t, Yearly, p.Type)
	assert.Equal(t, mo.Some(10), p.DayOfMonth)
	assert.Equal(t, mo.Some(0), p.MonthOfYear, "January must count as set")

	require.NoError(t, json.Unmarshal([]byte(`{"type":"monthly","interval":2,"dayOfMonth":null}`), &p))
	assert.True(t, p.DayOfMonth.IsAbsent())
	assert.True(t, p.MonthOfYear.IsAbsent())
}

func TestPattern_MarshalOmitsUnset(t *testing.T) {
	data, err := json.Marshal(Pattern{Type: Monthly, Interval: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"monthly","interval":1}`, string(data))

	data, err = json.Marshal(Pattern{Type: Yearly, Interval: 1, MonthOfYear: mo.Some(0), DayOfMonth: mo.Some(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"yearly","interval":1,"dayOfMonth":1,"monthOfYear":0}`, string(data))
}

func TestFrequency_Valid(t *testing.T) {
	for _, f := range []Frequency{Daily, Weekly, Monthly, Yearly} {
		assert.True(t, f.Valid(), f)
	}
	assert.False(t, Frequency("hourly").Valid())
	assert.False(t, Frequency("").Valid())
}

func TestDateRange_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		start   time.Time
		end     *time.Time
		wantErr bool
	}{
		{"rfc3339", `{"startDate":"2025-01-06T09:30:00+02:00"}`, time.Date(2025, 1, 6, 9, 30, 0, 0, time.FixedZone("", 2*3600)), nil, false},
		{"date only", `{"startDate":"2025-01-06","endDate":"2025-01-20"}`, day(2025, 1, 6), ptr(day(2025, 1, 20)), false},
		{"mixed", `{"startDate":"2025-01-06","endDate":"2025-01-20T00:00:00Z"}`, day(2025, 1, 6), ptr(day(2025, 1, 20)), false},
		{"null end", `{"startDate":"2025-01-06","endDate":null}`, day(2025, 1, 6), nil, false},
		{"absent start", `{}`, time.Time{}, nil, false},
		{"malformed start", `{"startDate":"06/01/2025"}`, time.Time{}, nil, true},
		{"malformed end", `{"startDate":"2025-01-06","endDate":"soon"}`, time.Time{}, nil, true},
		{"number", `{"startDate":20250106}`, time.Time{}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r DateRange
			err := json.Unmarshal([]byte(tt.input), &r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, r.StartDate.Equal(tt.start), "start %s", r.StartDate)
			if tt.end == nil {
				assert.Nil(t, r.EndDate)
			} else {
				require.NotNil(t, r.EndDate)
				assert.True(t, r.EndDate.Equal(*tt.end), "end %s", r.EndDate)
			}
		})
	}
}
