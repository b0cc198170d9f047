package permit

import (
	"testing"
	"time"
)

// TestAddWorkingDays checks the pickup deadline walk across weekend
// boundaries, where off-by-one mistakes usually hide.
func TestAddWorkingDays(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		days int
		want time.Time
	}{
		{
			// Fri counts as day 1; two full weekends are skipped; the
			// deadline is Friday + 15 calendar days.
			name: "friday start lands 15 calendar days out",
			from: time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC), // Friday
			days: 11,
			want: time.Date(2025, 3, 22, 10, 0, 0, 0, time.UTC), // Saturday
		},
		{
			// Weekend start days never count toward the 11.
			name: "saturday start skips to monday before counting",
			from: time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC), // Saturday
			days: 11,
			want: time.Date(2025, 3, 25, 10, 0, 0, 0, time.UTC), // Tuesday
		},
		{
			name: "sunday start",
			from: time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC), // Sunday
			days: 11,
			want: time.Date(2025, 3, 25, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "monday start stays within-week for small counts",
			from: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), // Monday
			days: 3,
			want: time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC), // Thursday
		},
		{
			name: "zero days is identity",
			from: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			days: 0,
			want: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := addWorkingDays(tt.from, tt.days)
			if !got.Equal(tt.want) {
				t.Errorf("addWorkingDays(%s, %d) = %s, want %s",
					tt.from.Format("2006-01-02"), tt.days,
					got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

// TestAddWorkingDaysNeverCountsWeekends walks a spread of start dates and
// counts and asserts the number of weekdays strictly between start and
// deadline (inclusive of a weekday start) always equals the requested count.
func TestAddWorkingDaysNeverCountsWeekends(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < 14; offset++ {
		for days := 1; days <= 15; days++ {
			from := start.AddDate(0, 0, offset)
			deadline := addWorkingDays(from, days)

			counted := 0
			for d := from; d.Before(deadline); d = d.AddDate(0, 0, 1) {
				if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
					counted++
				}
			}
			if counted != days {
				t.Errorf("from %s (%s) days=%d: counted %d weekdays to %s",
					from.Format("2006-01-02"), from.Weekday(), days, counted,
					deadline.Format("2006-01-02"))
			}
		}
	}
}
