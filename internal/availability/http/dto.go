package http

import (
	"time"

	"github.com/magicparents/carebook/internal/availability"
	"github.com/magicparents/carebook/internal/pkg/slottime"
	"github.com/magicparents/carebook/internal/reconcile"
)

// DateURI is the :date path parameter in YYYY-MM-DD form.
type DateURI struct {
	Date string `uri:"date" binding:"required"`
}

// Parse returns the calendar day named by the path.
func (u *DateURI) Parse() (time.Time, error) {
	return slottime.ParseDate(u.Date)
}

// ProviderURI addresses a provider's public availability.
type ProviderURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type ProviderDateURI struct {
	ProviderURI
	DateURI
}

// ReplaceDayBody is the full set of hours the provider offers on a day.
// An empty list clears the day.
type ReplaceDayBody struct {
	Hours []slottime.TimeOfDay `json:"hours" binding:"required,max=24"`
}

type SlotResponse struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func NewSlotResponse(s *availability.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		Date:      s.Date.Format(slottime.DateLayout),
		StartTime: s.StartTime.String(),
		EndTime:   s.EndTime.String(),
	}
}

type DayResponse struct {
	Date  string   `json:"date"`
	Hours []string `json:"hours"`
}

func NewDayResponse(date time.Time, hours []slottime.TimeOfDay) DayResponse {
	return DayResponse{
		Date:  date.Format(slottime.DateLayout),
		Hours: slottime.Strings(hours),
	}
}

func NewDaysResponse(days []reconcile.DayHours) []DayResponse {
	out := make([]DayResponse, len(days))
	for i, d := range days {
		out[i] = NewDayResponse(d.Date, d.Hours)
	}
	return out
}
