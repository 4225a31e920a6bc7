package availability

import (
	"fmt"
	"time"
)

// maxScanDays bounds the forward walk. With a five-day work week any count up
// to five is reached well before this; hitting the cap is an internal error,
// not an infinite loop.
const maxScanDays = 14

// NextBusinessDays returns the next count Monday-Friday dates, resolved on
// now's calendar date in loc. Saturdays and Sundays roll forward to the
// following Monday; a weekday already past endHour rolls to the next day.
// Returned dates are anchored at noon in loc so that downstream date-only
// comparisons are immune to DST edges.
func NextBusinessDays(count int, now time.Time, loc *time.Location, endHour int) ([]time.Time, error) {
	if count <= 0 {
		return nil, fmt.Errorf("day count must be positive, got %d", count)
	}

	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	switch local.Weekday() {
	case time.Saturday:
		start = start.AddDate(0, 0, 2)
	case time.Sunday:
		start = start.AddDate(0, 0, 1)
	default:
		if local.Hour() >= endHour {
			start = start.AddDate(0, 0, 1)
		}
	}

	days := make([]time.Time, 0, count)
	for i := 0; i < maxScanDays && len(days) < count; i++ {
		d := start.AddDate(0, 0, i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	if len(days) < count {
		return nil, fmt.Errorf("found only %d of %d business days within %d calendar days", len(days), count, maxScanDays)
	}
	return days, nil
}
