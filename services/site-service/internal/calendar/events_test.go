package calendar

import (
	"errors"
	"testing"
	"time"
)

func parisLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestNormalize_SortsByStart(t *testing.T) {
	loc := parisLoc(t)
	events := []Event{
		{ID: "b", Start: EventTime{DateTime: "2026-01-28T14:00:00+01:00"}, End: EventTime{DateTime: "2026-01-28T15:00:00+01:00"}},
		{ID: "a", Start: EventTime{DateTime: "2026-01-28T09:00:00+01:00"}, End: EventTime{DateTime: "2026-01-28T10:30:00+01:00"}},
	}

	intervals, err := Normalize(events, loc)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	if !intervals[0].Start.Before(intervals[1].Start) {
		t.Fatal("intervals not sorted by start")
	}
}

func TestNormalize_DateTimeKeepsStatedOffset(t *testing.T) {
	loc := parisLoc(t)
	events := []Event{
		{ID: "x", Start: EventTime{DateTime: "2026-01-28T08:00:00Z"}, End: EventTime{DateTime: "2026-01-28T09:00:00Z"}},
	}

	intervals, err := Normalize(events, loc)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	// 08:00Z is 09:00 in Paris in winter.
	want := time.Date(2026, 1, 28, 9, 0, 0, 0, loc)
	if !intervals[0].Start.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, intervals[0].Start)
	}
}

func TestNormalize_AllDayEventSpansDayInTargetZone(t *testing.T) {
	loc := parisLoc(t)
	events := []Event{
		{ID: "allday", Start: EventTime{Date: "2026-01-28"}, End: EventTime{Date: "2026-01-29"}},
	}

	intervals, err := Normalize(events, loc)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	wantStart := time.Date(2026, 1, 28, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2026, 1, 29, 0, 0, 0, 0, loc)
	if !intervals[0].Start.Equal(wantStart) || !intervals[0].End.Equal(wantEnd) {
		t.Fatalf("expected %v-%v, got %v-%v", wantStart, wantEnd, intervals[0].Start, intervals[0].End)
	}
}

func TestNormalize_MissingBoundariesFail(t *testing.T) {
	loc := parisLoc(t)
	events := []Event{
		{ID: "broken", Start: EventTime{}, End: EventTime{DateTime: "2026-01-28T10:00:00Z"}},
	}

	_, err := Normalize(events, loc)
	var malformed *MalformedEventError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedEventError, got %v", err)
	}
	if malformed.EventID != "broken" {
		t.Fatalf("expected event id in error, got %q", malformed.EventID)
	}
}

func TestNormalize_InvertedEventFails(t *testing.T) {
	loc := parisLoc(t)
	events := []Event{
		{ID: "inv", Start: EventTime{DateTime: "2026-01-28T12:00:00Z"}, End: EventTime{DateTime: "2026-01-28T11:00:00Z"}},
	}
	var malformed *MalformedEventError
	if _, err := Normalize(events, loc); !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedEventError, got %v", err)
	}
}

func TestNormalize_SkipsCancelled(t *testing.T) {
	loc := parisLoc(t)
	events := []Event{
		{ID: "gone", Status: "cancelled"},
		{ID: "kept", Start: EventTime{DateTime: "2026-01-28T09:00:00Z"}, End: EventTime{DateTime: "2026-01-28T10:00:00Z"}},
	}

	intervals, err := Normalize(events, loc)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
}
