package timer

import "time"

// DurationMinutes is the whole number of minutes between start and end,
// rounded down. It never returns a negative value.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
