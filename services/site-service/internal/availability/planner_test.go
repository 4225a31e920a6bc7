package availability

import (
	"context"
	"errors"
	"testing"
	"time"
)

type staticSource struct {
	intervals []Interval
	err       error
	calls     int
}

func (s *staticSource) BusyIntervals(_ context.Context, _, _ time.Time) ([]Interval, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.intervals, nil
}

func newTestPlanner(t *testing.T, source BusySource) *Planner {
	t.Helper()
	p, err := NewPlanner(Policy{StartHour: 9, EndHour: 20}, mustLoc(t, "Europe/Paris"), source)
	if err != nil {
		t.Fatalf("NewPlanner failed: %v", err)
	}
	return p
}

func TestPlannerUpcoming_EmptyCalendarFillsWindow(t *testing.T) {
	p := newTestPlanner(t, &staticSource{})
	// Monday morning before opening: every slot of every day is free.
	now := time.Date(2026, 1, 26, 8, 0, 0, 0, p.Location())

	days, err := p.Upcoming(context.Background(), 5, now)
	if err != nil {
		t.Fatalf("Upcoming failed: %v", err)
	}
	if len(days) != 5 {
		t.Fatalf("expected 5 days, got %d", len(days))
	}
	for _, d := range days {
		if len(d.Slots) != 11 {
			t.Fatalf("day %s: expected 11 slots for a 9-20 window, got %d", d.Date, len(d.Slots))
		}
	}
}

func TestPlannerUpcoming_DatesAscending(t *testing.T) {
	p := newTestPlanner(t, &staticSource{})
	now := time.Date(2026, 1, 26, 8, 0, 0, 0, p.Location())

	days, err := p.Upcoming(context.Background(), 5, now)
	if err != nil {
		t.Fatalf("Upcoming failed: %v", err)
	}
	for i := 1; i < len(days); i++ {
		if days[i-1].Date >= days[i].Date {
			t.Fatalf("dates not ascending: %s then %s", days[i-1].Date, days[i].Date)
		}
	}
}

func TestPlannerUpcoming_SourceErrorFailsRequest(t *testing.T) {
	srcErr := errors.New("calendar unreachable")
	p := newTestPlanner(t, &staticSource{err: srcErr})
	now := time.Date(2026, 1, 26, 8, 0, 0, 0, p.Location())

	if _, err := p.Upcoming(context.Background(), 3, now); !errors.Is(err, srcErr) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestPlannerForDay_SlotInvariants(t *testing.T) {
	paris := mustLoc(t, "Europe/Paris")
	busy := []Interval{
		{Start: time.Date(2026, 1, 27, 10, 30, 0, 0, paris), End: time.Date(2026, 1, 27, 11, 15, 0, 0, paris)},
		{Start: time.Date(2026, 1, 27, 14, 0, 0, 0, paris), End: time.Date(2026, 1, 27, 16, 0, 0, 0, paris)},
	}
	p := newTestPlanner(t, &staticSource{intervals: busy})

	day := time.Date(2026, 1, 27, 12, 0, 0, 0, paris)
	now := time.Date(2026, 1, 26, 8, 0, 0, 0, paris)
	got, err := p.ForDay(context.Background(), day, now)
	if err != nil {
		t.Fatalf("ForDay failed: %v", err)
	}
	if len(got.Slots) == 0 {
		t.Fatal("expected slots")
	}

	seen := map[string]bool{}
	for _, s := range got.Slots {
		start, err := time.Parse("15:04", s.Start)
		if err != nil {
			t.Fatalf("bad start %q: %v", s.Start, err)
		}
		end, err := time.Parse("15:04", s.End)
		if err != nil {
			t.Fatalf("bad end %q: %v", s.End, err)
		}
		if !end.Equal(start.Add(time.Hour)) {
			t.Fatalf("slot %s-%s is not one hour wide", s.Start, s.End)
		}
		if start.Hour() < 9 || end.Hour() > 20 || (end.Hour() == 20 && end.Minute() != 0) {
			t.Fatalf("slot %s-%s outside working hours", s.Start, s.End)
		}
		if seen[s.Start] {
			t.Fatalf("overlapping slot at %s", s.Start)
		}
		seen[s.Start] = true
	}

	// The busy block 14:00-16:00 and the fractional 10:30-11:15 block must
	// leave 9-10, 12-13, 13-14 and 16-20 bookable.
	wantStarts := []string{"09:00", "12:00", "13:00", "16:00", "17:00", "18:00", "19:00"}
	if len(got.Slots) != len(wantStarts) {
		t.Fatalf("expected %d slots, got %d (%+v)", len(wantStarts), len(got.Slots), got.Slots)
	}
	for i, s := range got.Slots {
		if s.Start != wantStarts[i] {
			t.Fatalf("slot %d: expected start %s, got %s", i, wantStarts[i], s.Start)
		}
	}
}

func TestPlannerForDay_NoSlotsIsEmptyNotNil(t *testing.T) {
	paris := mustLoc(t, "Europe/Paris")
	busy := []Interval{{
		Start: time.Date(2026, 1, 27, 9, 0, 0, 0, paris),
		End:   time.Date(2026, 1, 27, 20, 0, 0, 0, paris),
	}}
	p := newTestPlanner(t, &staticSource{intervals: busy})

	day := time.Date(2026, 1, 27, 12, 0, 0, 0, paris)
	got, err := p.ForDay(context.Background(), day, time.Date(2026, 1, 26, 8, 0, 0, 0, paris))
	if err != nil {
		t.Fatalf("ForDay failed: %v", err)
	}
	if got.Slots == nil {
		t.Fatal("Slots must be an empty slice, not nil, so the JSON stays an array")
	}
	if len(got.Slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(got.Slots))
	}
}

func TestCombineSources(t *testing.T) {
	paris := mustLoc(t, "Europe/Paris")
	a := &staticSource{intervals: []Interval{{
		Start: time.Date(2026, 1, 27, 9, 0, 0, 0, paris),
		End:   time.Date(2026, 1, 27, 10, 0, 0, 0, paris),
	}}}
	b := &staticSource{intervals: []Interval{{
		Start: time.Date(2026, 1, 27, 15, 0, 0, 0, paris),
		End:   time.Date(2026, 1, 27, 16, 0, 0, 0, paris),
	}}}

	combined := CombineSources(a, b)
	got, err := combined.BusyIntervals(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("BusyIntervals failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(got))
	}

	c := &staticSource{err: errors.New("boom")}
	if _, err := CombineSources(a, c).BusyIntervals(context.Background(), time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error from failing source")
	}
}
