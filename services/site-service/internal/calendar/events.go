// Package calendar talks to the studio's remote calendar: it lists the events
// that block intake slots and creates events for confirmed bookings.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/ateliernova/site-backend/services/site-service/internal/availability"
)

// EventTime is one boundary of a calendar event on the wire. Timed events
// carry an RFC 3339 DateTime with an explicit offset; all-day events carry a
// bare Date interpreted in the studio's timezone.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Status      string    `json:"status,omitempty"`
}

// MalformedEventError reports an event whose boundaries cannot be resolved.
// Such events are never skipped silently: dropping one would understate busy
// time and let a client book over it.
type MalformedEventError struct {
	EventID string
	Reason  string
}

func (e *MalformedEventError) Error() string {
	id := e.EventID
	if id == "" {
		id = "(no id)"
	}
	return fmt.Sprintf("calendar event %s: %s", id, e.Reason)
}

func (t EventTime) resolve(loc *time.Location) (time.Time, error) {
	if t.DateTime != "" {
		// The stated offset is authoritative; do not reinterpret in loc.
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		return time.ParseInLocation("2006-01-02", t.Date, loc)
	}
	return time.Time{}, fmt.Errorf("missing both date and dateTime")
}

// Normalize converts raw events into busy intervals sorted by start time.
// Cancelled events are ignored. All-day events span their full calendar days
// in loc (the provider's end date is exclusive).
func Normalize(events []Event, loc *time.Location) ([]availability.Interval, error) {
	intervals := make([]availability.Interval, 0, len(events))
	for _, ev := range events {
		if ev.Status == "cancelled" {
			continue
		}
		start, err := ev.Start.resolve(loc)
		if err != nil {
			return nil, &MalformedEventError{EventID: ev.ID, Reason: "start: " + err.Error()}
		}
		end, err := ev.End.resolve(loc)
		if err != nil {
			return nil, &MalformedEventError{EventID: ev.ID, Reason: "end: " + err.Error()}
		}
		if !end.After(start) {
			return nil, &MalformedEventError{EventID: ev.ID, Reason: fmt.Sprintf("end %s is not after start %s", end, start)}
		}
		intervals = append(intervals, availability.Interval{Start: start, End: end})
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })
	return intervals, nil
}
