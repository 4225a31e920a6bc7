package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// BusySource supplies the busy intervals overlapping [from, to). Implemented
// by the calendar client and by the bookings table.
type BusySource interface {
	BusyIntervals(ctx context.Context, from, to time.Time) ([]Interval, error)
}

// SourceFunc adapts a function to the BusySource interface.
type SourceFunc func(ctx context.Context, from, to time.Time) ([]Interval, error)

func (f SourceFunc) BusyIntervals(ctx context.Context, from, to time.Time) ([]Interval, error) {
	return f(ctx, from, to)
}

// CombineSources unions several busy sources. Any source error fails the
// lookup: a partial busy picture would overstate free time.
func CombineSources(sources ...BusySource) BusySource {
	return SourceFunc(func(ctx context.Context, from, to time.Time) ([]Interval, error) {
		var all []Interval
		for _, src := range sources {
			ivs, err := src.BusyIntervals(ctx, from, to)
			if err != nil {
				return nil, err
			}
			all = append(all, ivs...)
		}
		return all, nil
	})
}

// DayAvailability is one business day's bookable slots, as served to the site.
type DayAvailability struct {
	Date  string `json:"date"`
	Slots []Slot `json:"freeSlots"`
}

// Planner runs the full pipeline: business-day selection, busy-interval
// merge, free-gap computation, hourly slicing, past-slot filtering.
type Planner struct {
	policy Policy
	loc    *time.Location
	source BusySource
}

func NewPlanner(policy Policy, loc *time.Location, source BusySource) (*Planner, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, errors.New("planner requires a timezone")
	}
	if source == nil {
		return nil, errors.New("planner requires a busy source")
	}
	return &Planner{policy: policy, loc: loc, source: source}, nil
}

func (p *Planner) Policy() Policy { return p.policy }

func (p *Planner) Location() *time.Location { return p.loc }

// Upcoming computes the availability for the next count business days
// relative to now. Days are fetched concurrently; the result is ordered by
// date ascending regardless of completion order. A busy-source failure for
// any day fails the whole call.
func (p *Planner) Upcoming(ctx context.Context, count int, now time.Time) ([]DayAvailability, error) {
	days, err := NextBusinessDays(count, now, p.loc, p.policy.EndHour)
	if err != nil {
		return nil, err
	}

	results := make([]DayAvailability, len(days))
	errs := make([]error, len(days))
	var wg sync.WaitGroup
	for i, day := range days {
		wg.Add(1)
		go func(i int, day time.Time) {
			defer wg.Done()
			results[i], errs[i] = p.ForDay(ctx, day, now)
		}(i, day)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ForDay computes a single day's availability.
func (p *Planner) ForDay(ctx context.Context, day time.Time, now time.Time) (DayAvailability, error) {
	window := p.policy.Window(day, p.loc)
	busy, err := p.source.BusyIntervals(ctx, window.Start, window.End)
	if err != nil {
		return DayAvailability{}, fmt.Errorf("busy intervals for %s: %w", day.In(p.loc).Format(DateLayout), err)
	}
	busy = MergeIntervals(busy)

	slots := []Slot{}
	for _, gap := range FreeGaps(busy, window.Start, window.End) {
		slots = append(slots, SliceHourly(gap, day, p.loc)...)
	}
	slots = FilterFuture(slots, day, now, p.loc)

	return DayAvailability{
		Date:  day.In(p.loc).Format(DateLayout),
		Slots: slots,
	}, nil
}
