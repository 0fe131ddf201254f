package booking

import (
	"time"

	"github.com/magicparents/carebook/internal/pkg/slottime"
)

const (
	// PromotionLead is how long before the start a confirmed booking becomes ongoing.
	PromotionLead = 30 * time.Minute
	// CancelCutoff is the minimum notice for cancelling a confirmed booking.
	CancelCutoff = time.Hour
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed: {StatusOngoing, StatusCancelled},
	StatusPaid:      {StatusOngoing, StatusCancelled},
	StatusOngoing:   {StatusCompleted},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PromotionDue reports whether a confirmed booking starting at start should be
// ongoing at now. The window closes at the start; a booking that missed it
// stays confirmed.
func PromotionDue(start, now time.Time) bool {
	return !now.Before(start.Add(-PromotionLead)) && !now.After(start)
}

// CompletionDue reports whether an ongoing booking starting at start has ended.
func CompletionDue(start, now time.Time) bool {
	return !now.Before(start.Add(slottime.SlotLength))
}

// checkCancel applies the cancellation timing rules for the booking's current status.
func checkCancel(status Status, start, now time.Time) error {
	switch status {
	case StatusPending:
		if !now.Before(start) {
			return ErrSlotStarted
		}
	case StatusConfirmed, StatusPaid:
		if start.Sub(now) <= CancelCutoff {
			return ErrCancelCutoff
		}
	default:
		return ErrInvalidTransition
	}
	return nil
}
