package availability

import (
	"testing"
	"time"
)

func at(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 1, 28, hour, min, 0, 0, time.UTC)
}

func TestMergeIntervals(t *testing.T) {
	tests := []struct {
		name string
		in   []Interval
		want []Interval
	}{
		{
			name: "unsorted input is sorted",
			in: []Interval{
				{Start: time.Date(2026, 1, 28, 14, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC)},
				{Start: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)},
			},
			want: []Interval{
				{Start: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)},
				{Start: time.Date(2026, 1, 28, 14, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC)},
			},
		},
		{
			name: "overlapping intervals coalesce",
			in: []Interval{
				{Start: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC)},
				{Start: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)},
			},
			want: []Interval{
				{Start: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)},
			},
		},
		{
			name: "touching intervals coalesce",
			in: []Interval{
				{Start: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)},
				{Start: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC)},
			},
			want: []Interval{
				{Start: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC)},
			},
		},
		{
			name: "contained interval disappears",
			in: []Interval{
				{Start: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 13, 0, 0, 0, time.UTC)},
				{Start: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC)},
			},
			want: []Interval{
				{Start: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 13, 0, 0, 0, time.UTC)},
			},
		},
		{
			name: "inverted interval dropped",
			in: []Interval{
				{Start: time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)},
			},
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeIntervals(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d intervals, got %d", len(tc.want), len(got))
			}
			for i := range got {
				if !got[i].Start.Equal(tc.want[i].Start) || !got[i].End.Equal(tc.want[i].End) {
					t.Fatalf("interval %d: expected %v-%v, got %v-%v",
						i, tc.want[i].Start, tc.want[i].End, got[i].Start, got[i].End)
				}
			}
		})
	}
}

func TestFreeGaps_EmptyBusyIsFullWindow(t *testing.T) {
	gaps := FreeGaps(nil, at(t, 9, 0), at(t, 20, 0))
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if !gaps[0].Start.Equal(at(t, 9, 0)) || !gaps[0].End.Equal(at(t, 20, 0)) {
		t.Fatalf("expected 09:00-20:00, got %v-%v", gaps[0].Start, gaps[0].End)
	}
}

func TestFreeGaps_FullyBusyDay(t *testing.T) {
	busy := []Interval{{Start: at(t, 9, 0), End: at(t, 20, 0)}}
	if gaps := FreeGaps(busy, at(t, 9, 0), at(t, 20, 0)); len(gaps) != 0 {
		t.Fatalf("expected no gaps, got %d", len(gaps))
	}
}

func TestFreeGaps_FractionalBoundariesRoundInward(t *testing.T) {
	// Busy until 10:45 and again from 12:15. The 90 minute gap keeps only
	// its whole-hour middle: 11:00-12:00. The 15 minute fringes are lost.
	busy := []Interval{
		{Start: at(t, 9, 0), End: at(t, 10, 45)},
		{Start: at(t, 12, 15), End: at(t, 13, 0)},
	}
	gaps := FreeGaps(busy, at(t, 9, 0), at(t, 13, 0))
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if !gaps[0].Start.Equal(at(t, 11, 0)) || !gaps[0].End.Equal(at(t, 12, 0)) {
		t.Fatalf("expected 11:00-12:00, got %v-%v", gaps[0].Start, gaps[0].End)
	}
}

func TestFreeGaps_ForeignOffsetBusyRoundsOnWindowGrid(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	halfHourZone := time.FixedZone("UTC+05:30", 5*3600+30*60)

	// 13:45-14:45 at +05:30 is 09:15-10:15 in Paris. Rounding must follow the
	// window's hour grid, not the event's half-hour-shifted wall clock, or the
	// gap would start at 10:30 Paris time.
	busy := []Interval{{
		Start: time.Date(2026, 1, 28, 13, 45, 0, 0, halfHourZone),
		End:   time.Date(2026, 1, 28, 14, 45, 0, 0, halfHourZone),
	}}
	workStart := time.Date(2026, 1, 28, 9, 0, 0, 0, paris)
	workEnd := time.Date(2026, 1, 28, 20, 0, 0, 0, paris)

	gaps := FreeGaps(busy, workStart, workEnd)
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	wantStart := time.Date(2026, 1, 28, 11, 0, 0, 0, paris)
	if !gaps[0].Start.Equal(wantStart) || !gaps[0].End.Equal(workEnd) {
		t.Fatalf("expected 11:00-20:00 Paris, got %v-%v", gaps[0].Start, gaps[0].End)
	}
	for _, gap := range gaps {
		if gap.Start.In(paris).Minute() != 0 || gap.End.In(paris).Minute() != 0 {
			t.Fatalf("gap off the Paris hour grid: %v-%v", gap.Start, gap.End)
		}
	}

	day := time.Date(2026, 1, 28, 12, 0, 0, 0, paris)
	slots := SliceHourly(gaps[0], day, paris)
	if len(slots) == 0 {
		t.Fatal("expected slots from the gap")
	}
	if slots[0].ID != "2026-01-28_11:00_12:00" {
		t.Fatalf("expected first slot 2026-01-28_11:00_12:00, got %s", slots[0].ID)
	}
	for _, s := range slots {
		if s.Start[len(s.Start)-2:] != "00" || s.End[len(s.End)-2:] != "00" {
			t.Fatalf("slot not on the hour: %+v", s)
		}
	}
}

func TestFreeGaps_SubHourGapDropped(t *testing.T) {
	busy := []Interval{
		{Start: at(t, 9, 0), End: at(t, 10, 30)},
		{Start: at(t, 11, 15), End: at(t, 20, 0)},
	}
	if gaps := FreeGaps(busy, at(t, 9, 0), at(t, 20, 0)); len(gaps) != 0 {
		t.Fatalf("expected no gaps for 45 minute hole, got %d", len(gaps))
	}
}

func TestFreeGaps_BusySpillingOutsideWindowIsClamped(t *testing.T) {
	// An event starting before opening and one ending after closing must not
	// produce gaps outside the window.
	busy := []Interval{
		{Start: at(t, 7, 0), End: at(t, 10, 0)},
		{Start: at(t, 18, 0), End: at(t, 22, 0)},
	}
	gaps := FreeGaps(busy, at(t, 9, 0), at(t, 20, 0))
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if !gaps[0].Start.Equal(at(t, 10, 0)) || !gaps[0].End.Equal(at(t, 18, 0)) {
		t.Fatalf("expected 10:00-18:00, got %v-%v", gaps[0].Start, gaps[0].End)
	}
}

func TestFreeGaps_LeadingAndTrailingGaps(t *testing.T) {
	busy := []Interval{{Start: at(t, 12, 0), End: at(t, 14, 0)}}
	gaps := FreeGaps(busy, at(t, 9, 0), at(t, 20, 0))
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(gaps))
	}
	if !gaps[0].Start.Equal(at(t, 9, 0)) || !gaps[0].End.Equal(at(t, 12, 0)) {
		t.Fatalf("leading gap: expected 09:00-12:00, got %v-%v", gaps[0].Start, gaps[0].End)
	}
	if !gaps[1].Start.Equal(at(t, 14, 0)) || !gaps[1].End.Equal(at(t, 20, 0)) {
		t.Fatalf("trailing gap: expected 14:00-20:00, got %v-%v", gaps[1].Start, gaps[1].End)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := (Policy{StartHour: 9, EndHour: 20}).Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}
	for _, p := range []Policy{
		{StartHour: 20, EndHour: 9},
		{StartHour: 9, EndHour: 9},
		{StartHour: -1, EndHour: 9},
		{StartHour: 9, EndHour: 24},
	} {
		if err := p.Validate(); err == nil {
			t.Fatalf("expected policy %+v to be rejected", p)
		}
	}
}
