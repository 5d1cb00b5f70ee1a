package freshness

import (
	"fmt"
	"math"
	"time"
)

const (
	day   = 24 * time.Hour
	month = time.Duration(30.4 * float64(day))
	year  = 365 * day
)

// scale lists the display units from smallest to largest. A value that
// rounds to limit is shown as one of the next unit.
var scale = []struct {
	unit  time.Duration
	limit int
	name  string
}{
	{time.Minute, 60, "minute"},
	{time.Hour, 24, "hour"},
	{day, 30, "day"},
	{month, 12, "month"},
	{year, 0, "year"},
}

// FormatDuration renders d as its single largest whole unit, rounded to the
// nearest value: "45 seconds", "1 minute", "3 hours", "12 days", "5 months",
// "2 years". Rounding never yields a full count of the next unit, so 59m50s
// is "1 hour" and 364 days is "1 year". Negative durations are treated as
// zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return count(int(d/time.Second), "second")
	}
	for i, s := range scale {
		if s.limit == 0 {
			return count(round(d, s.unit), s.name)
		}
		if d >= time.Duration(s.limit)*s.unit {
			continue
		}
		n := round(d, s.unit)
		if n >= s.limit {
			return count(1, scale[i+1].name)
		}
		return count(n, s.name)
	}
	return ""
}

func round(d, unit time.Duration) int {
	return int(math.Round(float64(d) / float64(unit)))
}

func count(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
