package availability

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	clockLayout = "15:04"
	slotIDSep   = "_"
)

// Slot is a one-hour bookable range on a given day. Start and End are wall
// clock times ("HH:MM") in the studio's timezone; the ID embeds the date and
// both times so the booking endpoint can reconstruct the exact slot.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
	ID    string `json:"id"`
}

// SliceHourly cuts a whole-hour-aligned gap into consecutive one-hour slots.
// A trailing remainder shorter than an hour is discarded.
func SliceHourly(gap Interval, day time.Time, loc *time.Location) []Slot {
	date := day.In(loc).Format(DateLayout)
	var slots []Slot
	for cur := gap.Start; !cur.Add(time.Hour).After(gap.End); cur = cur.Add(time.Hour) {
		start := cur.In(loc).Format(clockLayout)
		end := cur.Add(time.Hour).In(loc).Format(clockLayout)
		slots = append(slots, Slot{
			Start: start,
			End:   end,
			ID:    SlotID(date, start, end),
		})
	}
	return slots
}

// SlotID builds the stable identifier for a (date, start, end) triple.
func SlotID(date, start, end string) string {
	return date + slotIDSep + start + slotIDSep + end
}

// ParseSlotID is the inverse of SlotID. It rejects ids whose components do
// not parse or whose end is not exactly one hour after the start, so an id
// accepted here always denotes a slot this package could have produced.
func ParseSlotID(id string) (date, start, end string, err error) {
	parts := strings.Split(id, slotIDSep)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("slot id %q: want 3 parts, got %d", id, len(parts))
	}
	date, start, end = parts[0], parts[1], parts[2]
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", "", "", fmt.Errorf("slot id %q: bad date: %w", id, err)
	}
	startClock, err := time.Parse(clockLayout, start)
	if err != nil {
		return "", "", "", fmt.Errorf("slot id %q: bad start time: %w", id, err)
	}
	endClock, err := time.Parse(clockLayout, end)
	if err != nil {
		return "", "", "", fmt.Errorf("slot id %q: bad end time: %w", id, err)
	}
	if !endClock.Equal(startClock.Add(time.Hour)) {
		return "", "", "", fmt.Errorf("slot id %q: slot is not one hour wide", id)
	}
	return date, start, end, nil
}

// FilterFuture keeps only slots whose start instant, resolved on day's date
// in loc, is strictly after now. A slot starting exactly at now is excluded.
func FilterFuture(slots []Slot, day time.Time, now time.Time, loc *time.Location) []Slot {
	d := day.In(loc)
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		clock, err := time.Parse(clockLayout, s.Start)
		if err != nil {
			continue
		}
		startAt := time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		if startAt.After(now) {
			out = append(out, s)
		}
	}
	return out
}
