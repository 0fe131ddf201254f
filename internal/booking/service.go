package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/directory"
	"github.com/magicparents/carebook/internal/notify"
	"github.com/magicparents/carebook/internal/pkg/clock"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

// SlotChecker reports which requested hours cannot be booked.
type SlotChecker interface {
	UnavailableHours(ctx context.Context, providerID string, date time.Time, hours []slottime.TimeOfDay) ([]slottime.TimeOfDay, error)
}

type CreateRequest struct {
	ClientID   string
	ProviderID string
	Day        time.Time
	Hours      []slottime.TimeOfDay
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Summary, error)
	Confirm(ctx context.Context, id, providerID string) (*Booking, error)
	Reject(ctx context.Context, id, providerID string) (*Booking, error)
	Cancel(ctx context.Context, id string, actor Actor) (*CancelResult, error)
	SubmitReview(ctx context.Context, id, clientID string, rating int) (*Review, *ProviderRating, error)
	GetByID(ctx context.Context, id string, actor Actor) (*Booking, error)
	List(ctx context.Context, actor Actor, filter Filter) ([]*Booking, int, error)

	// PromoteDue moves confirmed bookings whose promotion window is open to ongoing.
	PromoteDue(ctx context.Context) (int, error)
	// CompleteDue moves ongoing bookings whose hour has ended to completed.
	CompleteDue(ctx context.Context) (int, error)
}

type Deps struct {
	Repo      Repository
	Slots     SlotChecker
	Directory directory.Directory
	Notifier  notify.Gateway
	Clock     clock.Clock
	Location  *time.Location
	Logger    *zap.Logger
}

type service struct {
	repo     Repository
	slots    SlotChecker
	dir      directory.Directory
	notifier notify.Gateway
	clock    clock.Clock
	loc      *time.Location
	logger   *zap.Logger
}

func NewService(d Deps) Service {
	return &service{
		repo:     d.Repo,
		slots:    d.Slots,
		dir:      d.Directory,
		notifier: d.Notifier,
		clock:    d.Clock,
		loc:      d.Location,
		logger:   d.Logger,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Summary, error) {
	hours, err := validateHours(req.Hours)
	if err != nil {
		return nil, err
	}
	if req.ClientID == req.ProviderID {
		return nil, ErrSelfBooking
	}

	provider, err := s.lookup(ctx, req.ProviderID, directory.RoleProvider, ErrProviderNotFound)
	if err != nil {
		return nil, err
	}
	client, err := s.lookup(ctx, req.ClientID, directory.RoleClient, ErrClientNotFound)
	if err != nil {
		return nil, err
	}

	day := slottime.Date(req.Day)
	unavailable, err := s.slots.UnavailableHours(ctx, provider.ID, day, hours)
	if err != nil {
		return nil, err
	}
	if len(unavailable) > 0 {
		return nil, ErrHoursUnavailable.WithDetails(slottime.Strings(unavailable)...)
	}

	sum := &Summary{
		RequestID:  uuid.NewString(),
		ClientID:   client.ID,
		ProviderID: provider.ID,
		Day:        day,
		Hours:      hours,
		HourPrice:  provider.HourPrice,
		TotalPrice: provider.HourPrice * float64(len(hours)),
		Location:   provider.Location,
		Status:     StatusPending,
	}
	for _, h := range hours {
		sum.Bookings = append(sum.Bookings, &Booking{
			ID:         uuid.NewString(),
			RequestID:  sum.RequestID,
			ClientID:   client.ID,
			ProviderID: provider.ID,
			Day:        day,
			Hour:       h,
			TotalPrice: provider.HourPrice,
			Status:     StatusPending,
			Location:   provider.Location,
		})
	}

	if err := s.repo.WithinTx(ctx, func(tx Repository) error {
		return tx.CreateMany(ctx, sum.Bookings)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("booking requested",
		zap.String("request_id", sum.RequestID),
		zap.String("client_id", client.ID),
		zap.String("provider_id", provider.ID),
		zap.String("day", day.Format(slottime.DateLayout)),
		zap.Strings("hours", slottime.Strings(hours)),
	)

	s.dispatch(ctx, notify.Notice{
		Event:            notify.EventRequested,
		To:               provider.Email,
		RecipientName:    provider.Name(),
		CounterpartyName: client.Name(),
		Day:              day,
		Hours:            slottime.Strings(hours),
		Location:         provider.Location,
		TotalPrice:       sum.TotalPrice,
		BookingIDs:       bookingIDs(sum.Bookings),
	})

	return sum, nil
}

func (s *service) Confirm(ctx context.Context, id, providerID string) (*Booking, error) {
	var confirmed *Booking
	var displaced []*Booking

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		b, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.ProviderID != providerID {
			return ErrPermissionDenied
		}
		if !CanTransition(b.Status, StatusConfirmed) {
			return ErrInvalidTransition
		}
		if !s.clock.Now().Before(b.Start(s.loc)) {
			return ErrSlotStarted
		}

		confirmed, err = tx.TransitionStatus(ctx, id, StatusPending, StatusConfirmed, "")
		if err != nil {
			if errors.Is(err, ErrStaleStatus) {
				return ErrInvalidTransition
			}
			return err
		}

		// The slot is now held; competing requests for it can never be confirmed.
		displaced, err = tx.RejectPendingForSlot(ctx, b.ProviderID, b.Day, b.Hour, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking confirmed",
		zap.String("booking_id", id),
		zap.String("provider_id", providerID),
		zap.Int("displaced", len(displaced)),
	)

	provider := s.party(ctx, confirmed.ProviderID)
	s.notifyClient(ctx, confirmed, notify.EventConfirmed, provider)
	for _, d := range displaced {
		s.notifyClient(ctx, d, notify.EventRejected, provider)
	}

	return confirmed, nil
}

func (s *service) Reject(ctx context.Context, id, providerID string) (*Booking, error) {
	var rejected *Booking

	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		b, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.ProviderID != providerID {
			return ErrPermissionDenied
		}
		if !CanTransition(b.Status, StatusRejected) {
			return ErrInvalidTransition
		}

		rejected, err = tx.TransitionStatus(ctx, id, StatusPending, StatusRejected, "")
		if errors.Is(err, ErrStaleStatus) {
			return ErrInvalidTransition
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking rejected", zap.String("booking_id", id), zap.String("provider_id", providerID))
	s.notifyClient(ctx, rejected, notify.EventRejected, s.party(ctx, rejected.ProviderID))

	return rejected, nil
}

func (s *service) Cancel(ctx context.Context, id string, actor Actor) (*CancelResult, error) {
	if actor.Kind != ActorClient && actor.Kind != ActorProvider {
		return nil, ErrPermissionDenied
	}

	var cancelled *Booking
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		b, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !b.IsParty(actor) {
			return ErrPermissionDenied
		}
		if err := checkCancel(b.Status, b.Start(s.loc), s.clock.Now()); err != nil {
			return err
		}

		cancelled, err = tx.TransitionStatus(ctx, id, b.Status, StatusCancelled, actor.Kind)
		if errors.Is(err, ErrStaleStatus) {
			return ErrInvalidTransition
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", id),
		zap.String("actor_id", actor.ID),
		zap.String("cancelled_by", string(actor.Kind)),
	)

	client := s.party(ctx, cancelled.ClientID)
	provider := s.party(ctx, cancelled.ProviderID)
	recipient, counterparty := provider, client
	if actor.Kind == ActorProvider {
		recipient, counterparty = client, provider
	}
	s.notifyParty(ctx, cancelled, notify.EventCancelled, recipient, counterparty, string(actor.Kind))

	return &CancelResult{
		BookingID:   cancelled.ID,
		NewStatus:   cancelled.Status,
		CancelledBy: cancelled.CancelledBy,
	}, nil
}

func (s *service) SubmitReview(ctx context.Context, id, clientID string, rating int) (*Review, *ProviderRating, error) {
	if rating < 1 || rating > 5 {
		return nil, nil, ErrInvalidRating
	}

	var review *Review
	var pr *ProviderRating
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		b, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.ClientID != clientID {
			return ErrPermissionDenied
		}
		if b.Status != StatusCompleted {
			return ErrNotCompleted
		}

		review = &Review{BookingID: b.ID, ClientID: b.ClientID, ProviderID: b.ProviderID, Rating: rating}
		if err := tx.CreateReview(ctx, review); err != nil {
			return err
		}
		pr, err = tx.RecomputeProviderRating(ctx, b.ProviderID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("booking reviewed",
		zap.String("booking_id", id),
		zap.Int("rating", rating),
		zap.Float64("provider_average", pr.AverageRating),
	)
	return review, pr, nil
}

func (s *service) GetByID(ctx context.Context, id string, actor Actor) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actor) {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) List(ctx context.Context, actor Actor, filter Filter) ([]*Booking, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidInput
	}

	filter.ClientID, filter.ProviderID = "", ""
	switch actor.Kind {
	case ActorClient:
		filter.ClientID = actor.ID
	case ActorProvider:
		filter.ProviderID = actor.ID
	default:
		return nil, 0, ErrPermissionDenied
	}
	return s.repo.List(ctx, filter)
}

func (s *service) PromoteDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	today := slottime.DateIn(now, s.loc)

	var n int
	for _, status := range []Status{StatusConfirmed, StatusPaid} {
		// A promotion window never spans more than the neighbouring day.
		candidates, err := s.repo.ListByStatus(ctx, status, today.AddDate(0, 0, -1), today.AddDate(0, 0, 1))
		if err != nil {
			return n, err
		}
		for _, b := range candidates {
			if !PromotionDue(b.Start(s.loc), now) {
				continue
			}
			if s.advance(ctx, b, status, StatusOngoing) {
				n++
			}
		}
	}
	return n, nil
}

func (s *service) CompleteDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	today := slottime.DateIn(now, s.loc)

	candidates, err := s.repo.ListByStatus(ctx, StatusOngoing, slottime.Date(time.Time{}), today)
	if err != nil {
		return 0, err
	}

	var n int
	for _, b := range candidates {
		if !CompletionDue(b.Start(s.loc), now) {
			continue
		}
		if s.advance(ctx, b, StatusOngoing, StatusCompleted) {
			n++
		}
	}
	return n, nil
}

// advance applies one scheduler transition. Losing a race to another runner
// is not an error.
func (s *service) advance(ctx context.Context, b *Booking, from, to Status) bool {
	_, err := s.repo.TransitionStatus(ctx, b.ID, from, to, "")
	switch {
	case err == nil:
		s.logger.Info("booking advanced",
			zap.String("booking_id", b.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return true
	case errors.Is(err, ErrStaleStatus), errors.Is(err, ErrNotFound):
		return false
	default:
		s.logger.Error("advance booking failed",
			zap.String("booking_id", b.ID),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return false
	}
}

func (s *service) lookup(ctx context.Context, id string, role directory.Role, notFound error) (*directory.Party, error) {
	p, err := s.dir.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	if p.Role != role {
		return nil, notFound
	}
	return p, nil
}

// party resolves a notification recipient. Failures are logged and yield nil.
func (s *service) party(ctx context.Context, id string) *directory.Party {
	p, err := s.dir.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("notification recipient lookup failed", zap.String("user_id", id), zap.Error(err))
		return nil
	}
	return p
}

func (s *service) notifyClient(ctx context.Context, b *Booking, event notify.Event, provider *directory.Party) {
	s.notifyParty(ctx, b, event, s.party(ctx, b.ClientID), provider, "")
}

func (s *service) notifyParty(ctx context.Context, b *Booking, event notify.Event, recipient, counterparty *directory.Party, cancelledBy string) {
	if recipient == nil {
		return
	}
	n := notify.Notice{
		Event:         event,
		To:            recipient.Email,
		RecipientName: recipient.Name(),
		Day:           b.Day,
		Hours:         []string{b.Hour.String()},
		Location:      b.Location,
		TotalPrice:    b.TotalPrice,
		BookingIDs:    []string{b.ID},
		CancelledBy:   cancelledBy,
	}
	if counterparty != nil {
		n.CounterpartyName = counterparty.Name()
	}
	s.dispatch(ctx, n)
}

// dispatch renders and hands off a notice after the state change committed.
func (s *service) dispatch(ctx context.Context, n notify.Notice) {
	msg, err := notify.Compose(n)
	if err != nil {
		s.logger.Error("compose notification failed", zap.String("event", string(n.Event)), zap.Error(err))
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Warn("notification failed",
			zap.String("event", string(n.Event)),
			zap.String("to", msg.To),
			zap.Error(err),
		)
	}
}

func validateHours(hours []slottime.TimeOfDay) ([]slottime.TimeOfDay, error) {
	if len(hours) == 0 {
		return nil, ErrNoHours
	}
	seen := make(map[slottime.TimeOfDay]struct{}, len(hours))
	out := make([]slottime.TimeOfDay, 0, len(hours))
	for _, h := range hours {
		if !h.Valid() || !h.IsWholeHour() {
			return nil, ErrInvalidHour.WithDetails(h.String())
		}
		if _, dup := seen[h]; dup {
			return nil, ErrDuplicateHour.WithDetails(h.String())
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	slottime.Sort(out)
	return out, nil
}

func bookingIDs(bookings []*Booking) []string {
	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	return ids
}
