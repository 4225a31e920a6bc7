// Package availability computes the bookable one-hour slots the studio offers
// for intake calls: the next business days are selected in the studio's
// timezone, busy calendar intervals are subtracted from the working-hours
// window, and the remaining gaps are cut into whole-hour slots.
package availability

import (
	"fmt"
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Policy is the daily bookable window, in whole hours of the studio's timezone.
type Policy struct {
	StartHour int
	EndHour   int
}

func (p Policy) Validate() error {
	if p.StartHour < 0 || p.StartHour > 23 || p.EndHour < 0 || p.EndHour > 23 {
		return fmt.Errorf("working hours out of range: %d-%d", p.StartHour, p.EndHour)
	}
	if p.StartHour >= p.EndHour {
		return fmt.Errorf("working hours start %d must be before end %d", p.StartHour, p.EndHour)
	}
	return nil
}

// Window anchors the policy on day's calendar date in loc.
func (p Policy) Window(day time.Time, loc *time.Location) Interval {
	d := day.In(loc)
	return Interval{
		Start: time.Date(d.Year(), d.Month(), d.Day(), p.StartHour, 0, 0, 0, loc),
		End:   time.Date(d.Year(), d.Month(), d.Day(), p.EndHour, 0, 0, 0, loc),
	}
}

// MergeIntervals sorts busy intervals by start time and coalesces overlapping
// or touching ranges. Empty and inverted inputs are dropped. Calendar
// providers do not guarantee ordering, and overlapping events would otherwise
// surface as inverted gaps downstream.
func MergeIntervals(in []Interval) []Interval {
	valid := make([]Interval, 0, len(in))
	for _, iv := range in {
		if iv.End.After(iv.Start) {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Start.Before(valid[j].Start) })

	merged := []Interval{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if iv.Start.After(last.End) {
			merged = append(merged, iv)
			continue
		}
		if iv.End.After(last.End) {
			last.End = iv.End
		}
	}
	return merged
}

// FreeGaps returns the complement of busy within [workStart, workEnd), with
// every gap shrunk inward to whole-hour boundaries: the start is rounded up
// to the next full hour, the end rounded down. Rounding happens on the hour
// grid of workStart's location, so busy intervals carrying foreign offsets
// (a +05:30 calendar event, say) cannot shift gaps off the studio's grid.
// Gaps that close up or fall outside the window are dropped. busy must be
// sorted and non-overlapping (see MergeIntervals).
func FreeGaps(busy []Interval, workStart, workEnd time.Time) []Interval {
	loc := workStart.Location()
	var gaps []Interval
	emit := func(start, end time.Time) {
		if start.Before(workStart) {
			start = workStart
		}
		if end.After(workEnd) {
			end = workEnd
		}
		start = ceilHour(start.In(loc))
		end = floorHour(end.In(loc))
		if end.After(start) {
			gaps = append(gaps, Interval{Start: start, End: end})
		}
	}

	if len(busy) == 0 {
		emit(workStart, workEnd)
		return gaps
	}
	if busy[0].Start.After(workStart) {
		emit(workStart, busy[0].Start)
	}
	for i := 0; i+1 < len(busy); i++ {
		if busy[i].End.Before(busy[i+1].Start) {
			emit(busy[i].End, busy[i+1].Start)
		}
	}
	if last := busy[len(busy)-1]; last.End.Before(workEnd) {
		emit(last.End, workEnd)
	}
	return gaps
}

// floorHour zeroes minutes and seconds in t's wall clock.
func floorHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// ceilHour rounds t up to the next full hour unless it is already on one.
func ceilHour(t time.Time) time.Time {
	f := floorHour(t)
	if f.Equal(t) {
		return t
	}
	return f.Add(time.Hour)
}
