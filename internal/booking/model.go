package booking

import (
	"net/http"
	"time"

	"github.com/magicparents/carebook/internal/pkg/apperror"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, "booking not found")
	ErrProviderNotFound  = apperror.New(http.StatusNotFound, "provider not found")
	ErrClientNotFound    = apperror.New(http.StatusNotFound, "client not found")
	ErrPermissionDenied  = apperror.New(http.StatusForbidden, "permission denied")
	ErrInvalidInput      = apperror.New(http.StatusBadRequest, "invalid input parameters")
	ErrNoHours           = apperror.New(http.StatusBadRequest, "at least one hour must be requested")
	ErrInvalidHour       = apperror.New(http.StatusBadRequest, "hours must be whole hours between 00:00 and 23:00")
	ErrDuplicateHour     = apperror.New(http.StatusBadRequest, "hours must not repeat")
	ErrSelfBooking       = apperror.New(http.StatusBadRequest, "cannot book yourself")
	ErrInvalidRating     = apperror.New(http.StatusBadRequest, "rating must be between 1 and 5")
	ErrHoursUnavailable  = apperror.New(http.StatusConflict, "requested hours are not available")
	ErrDuplicateRequest  = apperror.New(http.StatusConflict, "a pending request for this slot already exists")
	ErrSlotTaken         = apperror.New(http.StatusConflict, "slot already taken")
	ErrInvalidTransition = apperror.New(http.StatusConflict, "booking cannot move to the requested status")
	ErrSlotStarted       = apperror.New(http.StatusConflict, "booking slot has already started")
	ErrNotCompleted      = apperror.New(http.StatusConflict, "only completed bookings can be reviewed")
	ErrReviewExists      = apperror.New(http.StatusConflict, "booking already reviewed")
	ErrCancelCutoff      = apperror.New(http.StatusUnprocessableEntity, "confirmed bookings cannot be cancelled within one hour of the start")

	// ErrStaleStatus means a compare-and-swap transition found the booking in a
	// different status than expected. Callers translate it for their context.
	ErrStaleStatus = apperror.New(http.StatusConflict, "booking status changed concurrently")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "provider_confirmed"
	// StatusPaid is a legacy status. Nothing moves a booking into it, but it
	// still holds its slot.
	StatusPaid      Status = "paid"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusPaid, StatusOngoing,
	StatusCompleted, StatusRejected, StatusCancelled,
}

// ClaimStatuses are the statuses that hold a slot exclusively.
var ClaimStatuses = []Status{StatusConfirmed, StatusPaid, StatusOngoing}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ClaimsSlot reports whether a booking in this status holds its slot.
func (s Status) ClaimsSlot() bool {
	for _, v := range ClaimStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// ActorKind is the side of the marketplace acting on a booking.
type ActorKind string

const (
	ActorClient   ActorKind = "client"
	ActorProvider ActorKind = "provider"
)

// Actor is an authenticated caller together with the side it acts for.
type Actor struct {
	ID   string
	Kind ActorKind
}

// Booking is one hour of a provider's time requested by a client.
type Booking struct {
	ID          string
	RequestID   string
	ClientID    string
	ProviderID  string
	Day         time.Time
	Hour        slottime.TimeOfDay
	TotalPrice  float64
	Status      Status
	Location    string
	CancelledBy ActorKind
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Start returns when the booked hour begins in loc.
func (b *Booking) Start(loc *time.Location) time.Time {
	return slottime.Start(b.Day, b.Hour, loc)
}

// IsParty reports whether the actor is the client or provider of the booking.
func (b *Booking) IsParty(a Actor) bool {
	switch a.Kind {
	case ActorClient:
		return a.ID == b.ClientID
	case ActorProvider:
		return a.ID == b.ProviderID
	}
	return false
}

// Summary describes a multi-hour submission.
type Summary struct {
	RequestID  string
	ClientID   string
	ProviderID string
	Day        time.Time
	Hours      []slottime.TimeOfDay
	HourPrice  float64
	TotalPrice float64
	Location   string
	Status     Status
	Bookings   []*Booking
}

// CancelResult is what a cancellation reports back to the caller.
type CancelResult struct {
	BookingID   string
	NewStatus   Status
	CancelledBy ActorKind
}

type Review struct {
	BookingID  string
	ClientID   string
	ProviderID string
	Rating     int
	CreatedAt  time.Time
}

// ProviderRating is the mean of all review ratings a provider received.
type ProviderRating struct {
	ProviderID    string
	AverageRating float64
	ReviewCount   int
	UpdatedAt     time.Time
}

// Filter narrows a booking listing to one party.
type Filter struct {
	ClientID   string
	ProviderID string
	Status     Status
	Page       int
	PageSize   int
}
