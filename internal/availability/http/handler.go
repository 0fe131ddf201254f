package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magicparents/carebook/internal/auth"
	"github.com/magicparents/carebook/internal/availability"
	"github.com/magicparents/carebook/internal/pkg/response"
	"github.com/magicparents/carebook/internal/pkg/slottime"
	"github.com/magicparents/carebook/internal/reconcile"
)

// FreeSlots answers which declared hours are still bookable.
type FreeSlots interface {
	FreeHoursForDay(ctx context.Context, providerID string, date time.Time) ([]slottime.TimeOfDay, error)
	FreeDaysWithHours(ctx context.Context, providerID string) ([]reconcile.DayHours, error)
}

type Handler struct {
	service availability.Service
	free    FreeSlots
}

func NewHandler(service availability.Service, free FreeSlots) *Handler {
	return &Handler{service: service, free: free}
}

// ReplaceDay sets the caller's own availability for a day.
func (h *Handler) ReplaceDay(c *gin.Context) {
	var uri DateURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	date, err := uri.Parse()
	if err != nil {
		response.BadRequest(c, "invalid date", err)
		return
	}

	var body ReplaceDayBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	slots, err := h.service.ReplaceDay(c.Request.Context(), auth.GetUserID(c), date, body.Hours)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SlotResponse, len(slots))
	for i, s := range slots {
		items[i] = NewSlotResponse(s)
	}
	c.JSON(http.StatusOK, items)
}

// GetDay returns the caller's own declared hours for a day, booked or not.
func (h *Handler) GetDay(c *gin.Context) {
	var uri DateURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	date, err := uri.Parse()
	if err != nil {
		response.BadRequest(c, "invalid date", err)
		return
	}

	hours, err := h.service.HoursForDay(c.Request.Context(), auth.GetUserID(c), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDayResponse(date, hours))
}

// ListFreeDays returns every upcoming day on which the provider still has a free hour.
func (h *Handler) ListFreeDays(c *gin.Context) {
	var uri ProviderURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	days, err := h.free.FreeDaysWithHours(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDaysResponse(days))
}

// GetFreeDay returns the provider's free hours for a day.
func (h *Handler) GetFreeDay(c *gin.Context) {
	var uri ProviderDateURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}
	date, err := uri.Parse()
	if err != nil {
		response.BadRequest(c, "invalid date", err)
		return
	}

	hours, err := h.free.FreeHoursForDay(c.Request.Context(), uri.ID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDayResponse(date, hours))
}
