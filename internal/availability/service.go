package availability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/pkg/clock"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

type Service interface {
	ReplaceDay(ctx context.Context, providerID string, date time.Time, hours []slottime.TimeOfDay) ([]*Slot, error)
	HoursForDay(ctx context.Context, providerID string, date time.Time) ([]slottime.TimeOfDay, error)
}

type service struct {
	repo   Repository
	clock  clock.Clock
	loc    *time.Location
	logger *zap.Logger
}

func NewService(repo Repository, clk clock.Clock, loc *time.Location, logger *zap.Logger) Service {
	return &service{repo: repo, clock: clk, loc: loc, logger: logger}
}

func (s *service) ReplaceDay(ctx context.Context, providerID string, date time.Time, hours []slottime.TimeOfDay) ([]*Slot, error) {
	date = slottime.Date(date)
	if date.Before(slottime.DateIn(s.clock.Now(), s.loc)) {
		return nil, ErrPastDate
	}

	hours, err := normalizeHours(hours)
	if err != nil {
		return nil, err
	}

	slots, err := s.repo.ReplaceDay(ctx, providerID, date, hours)
	if err != nil {
		return nil, err
	}

	s.logger.Info("availability replaced",
		zap.String("provider_id", providerID),
		zap.String("date", date.Format(slottime.DateLayout)),
		zap.Int("slots", len(slots)),
	)
	return slots, nil
}

// HoursForDay returns the provider's declared hours for the day, sorted ascending.
func (s *service) HoursForDay(ctx context.Context, providerID string, date time.Time) ([]slottime.TimeOfDay, error) {
	hours, err := s.repo.HoursForDay(ctx, providerID, slottime.Date(date))
	if err != nil {
		return nil, err
	}
	slottime.Sort(hours)
	return hours, nil
}
