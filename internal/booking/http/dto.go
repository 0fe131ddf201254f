package http

import (
	"time"

	"github.com/magicparents/carebook/internal/booking"
	"github.com/magicparents/carebook/internal/pkg/request"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	Status string `form:"status" binding:"omitempty,oneof=pending provider_confirmed paid ongoing completed rejected cancelled"`
}

// ProviderURI addresses the provider a booking is requested from.
type ProviderURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type CreateBookingBody struct {
	Day   string               `json:"day" binding:"required"`
	Hours []slottime.TimeOfDay `json:"hours" binding:"required,min=1,max=24"`
}

type ReviewBody struct {
	Rating int `json:"rating" binding:"required"`
}

type BookingResponse struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	ClientID    string    `json:"client_id"`
	ProviderID  string    `json:"provider_id"`
	Day         string    `json:"day"`
	Hour        string    `json:"hour"`
	TotalPrice  float64   `json:"total_price"`
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	CancelledBy string    `json:"cancelled_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID,
		RequestID:   b.RequestID,
		ClientID:    b.ClientID,
		ProviderID:  b.ProviderID,
		Day:         b.Day.Format(slottime.DateLayout),
		Hour:        b.Hour.String(),
		TotalPrice:  b.TotalPrice,
		Status:      string(b.Status),
		Location:    b.Location,
		CancelledBy: string(b.CancelledBy),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type SummaryResponse struct {
	RequestID  string            `json:"request_id"`
	ProviderID string            `json:"provider_id"`
	Day        string            `json:"day"`
	Hours      []string          `json:"hours"`
	HourPrice  float64           `json:"hour_price"`
	TotalPrice float64           `json:"total_price"`
	Location   string            `json:"location"`
	Status     string            `json:"status"`
	Bookings   []BookingResponse `json:"bookings"`
}

func NewSummaryResponse(s *booking.Summary) SummaryResponse {
	items := make([]BookingResponse, len(s.Bookings))
	for i, b := range s.Bookings {
		items[i] = NewBookingResponse(b)
	}
	return SummaryResponse{
		RequestID:  s.RequestID,
		ProviderID: s.ProviderID,
		Day:        s.Day.Format(slottime.DateLayout),
		Hours:      slottime.Strings(s.Hours),
		HourPrice:  s.HourPrice,
		TotalPrice: s.TotalPrice,
		Location:   s.Location,
		Status:     string(s.Status),
		Bookings:   items,
	}
}

type CancelResponse struct {
	BookingID   string `json:"booking_id"`
	NewStatus   string `json:"new_status"`
	CancelledBy string `json:"cancelled_by"`
}

type ReviewResponse struct {
	BookingID     string    `json:"booking_id"`
	Rating        int       `json:"rating"`
	CreatedAt     time.Time `json:"created_at"`
	ProviderScore float64   `json:"provider_average_rating"`
	ReviewCount   int       `json:"provider_review_count"`
}

func NewReviewResponse(rv *booking.Review, pr *booking.ProviderRating) ReviewResponse {
	return ReviewResponse{
		BookingID:     rv.BookingID,
		Rating:        rv.Rating,
		CreatedAt:     rv.CreatedAt,
		ProviderScore: pr.AverageRating,
		ReviewCount:   pr.ReviewCount,
	}
}
