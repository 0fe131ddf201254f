package availability

import (
	"net/http"
	"time"

	"github.com/magicparents/carebook/internal/pkg/apperror"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

var (
	ErrInvalidHour = apperror.New(http.StatusBadRequest, "availability hours must be whole hours between 00:00 and 23:00")
	ErrPastDate    = apperror.New(http.StatusBadRequest, "cannot change availability for a past date")

	ErrConcurrentEdit = apperror.New(http.StatusConflict, "availability for this day changed concurrently, retry")
)

// Slot is one declared hour of a provider's availability.
type Slot struct {
	ID            int64
	ProviderID    string
	Date          time.Time
	StartTime     slottime.TimeOfDay
	EndTime       slottime.TimeOfDay
	RolledForward bool
	CreatedAt     time.Time
}

// RollResult reports one roll-forward step.
type RollResult struct {
	// Rolled is the number of past slots marked as rolled forward.
	Rolled int
	// Inserted is the number of new slots materialized seven days later.
	Inserted int
}

// endOf mirrors the generated end_time column, which wraps at midnight.
func endOf(h slottime.TimeOfDay) slottime.TimeOfDay {
	return h.Add(slottime.SlotLength) % slottime.At(24, 0)
}

// normalizeHours validates hours and returns them deduplicated and sorted.
func normalizeHours(hours []slottime.TimeOfDay) ([]slottime.TimeOfDay, error) {
	seen := make(map[slottime.TimeOfDay]struct{}, len(hours))
	out := make([]slottime.TimeOfDay, 0, len(hours))
	for _, h := range hours {
		if !h.Valid() || !h.IsWholeHour() {
			return nil, ErrInvalidHour.WithDetails(h.String())
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	slottime.Sort(out)
	return out, nil
}
