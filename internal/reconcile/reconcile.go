// Package reconcile decides which declared availability hours are still bookable.
//
// An hour is free when the provider declared it, no booking holds it in a
// confirmed-or-better status, and it has not started yet.
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/magicparents/carebook/internal/pkg/clock"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

// AvailabilityReader reads declared availability.
type AvailabilityReader interface {
	HoursForDay(ctx context.Context, providerID string, date time.Time) ([]slottime.TimeOfDay, error)
	DistinctDays(ctx context.Context, providerID string) ([]time.Time, error)
}

// ClaimReader reads the hours already held by a confirmed-or-better booking.
type ClaimReader interface {
	ClaimedHours(ctx context.Context, providerID string, day time.Time) ([]slottime.TimeOfDay, error)
}

// DayHours is one day of free hours.
type DayHours struct {
	Date  time.Time
	Hours []slottime.TimeOfDay
}

type Reconciler struct {
	avail  AvailabilityReader
	claims ClaimReader
	clock  clock.Clock
	loc    *time.Location
}

func New(avail AvailabilityReader, claims ClaimReader, clk clock.Clock, loc *time.Location) *Reconciler {
	return &Reconciler{avail: avail, claims: claims, clock: clk, loc: loc}
}

// FreeHoursForDay returns the bookable hours for the day, sorted ascending.
func (r *Reconciler) FreeHoursForDay(ctx context.Context, providerID string, date time.Time) ([]slottime.TimeOfDay, error) {
	date = slottime.Date(date)

	declared, err := r.avail.HoursForDay(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if len(declared) == 0 {
		return nil, nil
	}

	claimed, err := r.claims.ClaimedHours(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	return FreeHours(declared, claimed, date, r.clock.Now(), r.loc), nil
}

// IsSlotAvailable reports whether a single hour is bookable. Booking admission
// checks a whole request at once through UnavailableHours instead.
func (r *Reconciler) IsSlotAvailable(ctx context.Context, providerID string, date time.Time, hour slottime.TimeOfDay) (bool, error) {
	unavailable, err := r.UnavailableHours(ctx, providerID, date, []slottime.TimeOfDay{hour})
	if err != nil {
		return false, err
	}
	return len(unavailable) == 0, nil
}

// UnavailableHours returns the subset of hours that are not bookable, in input order.
// It reads the day once regardless of how many hours are checked.
func (r *Reconciler) UnavailableHours(ctx context.Context, providerID string, date time.Time, hours []slottime.TimeOfDay) ([]slottime.TimeOfDay, error) {
	free, err := r.FreeHoursForDay(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	freeSet := make(map[slottime.TimeOfDay]struct{}, len(free))
	for _, h := range free {
		freeSet[h] = struct{}{}
	}

	var out []slottime.TimeOfDay
	for _, h := range hours {
		if _, ok := freeSet[h]; !ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// FreeDaysWithHours lists every declared day that still has a free hour, ordered by date.
func (r *Reconciler) FreeDaysWithHours(ctx context.Context, providerID string) ([]DayHours, error) {
	days, err := r.avail.DistinctDays(ctx, providerID)
	if err != nil {
		return nil, err
	}

	today := slottime.DateIn(r.clock.Now(), r.loc)
	var out []DayHours
	for _, d := range days {
		d = slottime.Date(d)
		if d.Before(today) {
			continue
		}
		free, err := r.FreeHoursForDay(ctx, providerID, d)
		if err != nil {
			return nil, err
		}
		if len(free) == 0 {
			continue
		}
		out = append(out, DayHours{Date: d, Hours: free})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// FreeHours computes declared minus claimed minus already started, sorted ascending.
func FreeHours(declared, claimed []slottime.TimeOfDay, date, now time.Time, loc *time.Location) []slottime.TimeOfDay {
	taken := make(map[slottime.TimeOfDay]struct{}, len(claimed))
	for _, h := range claimed {
		taken[h] = struct{}{}
	}

	seen := make(map[slottime.TimeOfDay]struct{}, len(declared))
	free := make([]slottime.TimeOfDay, 0, len(declared))
	for _, h := range declared {
		if _, ok := taken[h]; ok {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		if !slottime.Start(date, h, loc).After(now) {
			continue
		}
		seen[h] = struct{}{}
		free = append(free, h)
	}

	slottime.Sort(free)
	return free
}
