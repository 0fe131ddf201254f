package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/magicparents/carebook/internal/pkg/slottime"
)

// MemoryRepository is an in-process Repository that enforces the same
// uniqueness rules as the Postgres schema. Transactions are serialized and
// rolled back by restoring a snapshot.
type MemoryRepository struct {
	txMu sync.Mutex

	mu       sync.Mutex
	bookings map[string]*Booking
	reviews  map[string]*Review
	ratings  map[string]*ProviderRating
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bookings: make(map[string]*Booking),
		reviews:  make(map[string]*Review),
		ratings:  make(map[string]*ProviderRating),
		now:      time.Now,
	}
}

func (m *MemoryRepository) WithinTx(_ context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapBookings := make(map[string]*Booking, len(m.bookings))
	for k, v := range m.bookings {
		cp := *v
		snapBookings[k] = &cp
	}
	snapReviews := make(map[string]*Review, len(m.reviews))
	for k, v := range m.reviews {
		cp := *v
		snapReviews[k] = &cp
	}
	snapRatings := make(map[string]*ProviderRating, len(m.ratings))
	for k, v := range m.ratings {
		cp := *v
		snapRatings[k] = &cp
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.bookings, m.reviews, m.ratings = snapBookings, snapReviews, snapRatings
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryRepository) CreateMany(_ context.Context, bookings []*Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range bookings {
		b.Day = slottime.Date(b.Day)
	}
	for i, b := range bookings {
		if b.Status != StatusPending {
			continue
		}
		for _, other := range bookings[:i] {
			if sameClientSlot(b, other) && other.Status == StatusPending {
				return ErrDuplicateRequest
			}
		}
		for _, other := range m.bookings {
			if sameClientSlot(b, other) && other.Status == StatusPending {
				return ErrDuplicateRequest
			}
		}
	}

	now := m.now()
	for _, b := range bookings {
		b.CreatedAt, b.UpdatedAt = now, now
		cp := *b
		m.bookings[b.ID] = &cp
	}
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryRepository) GetByIDForUpdate(ctx context.Context, id string) (*Booking, error) {
	return m.GetByID(ctx, id)
}

func (m *MemoryRepository) List(_ context.Context, filter Filter) ([]*Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*Booking
	for _, b := range m.bookings {
		if filter.ClientID != "" && b.ClientID != filter.ClientID {
			continue
		}
		if filter.ProviderID != "" && b.ProviderID != filter.ProviderID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		cp := *b
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.After(b.Day)
		}
		if a.Hour != b.Hour {
			return a.Hour > b.Hour
		}
		return a.ID > b.ID
	})

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	total := len(all)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := min(start+filter.PageSize, total)
	return all[start:end], total, nil
}

func (m *MemoryRepository) TransitionStatus(_ context.Context, id string, from, to Status, cancelledBy ActorKind) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != from {
		return nil, ErrStaleStatus
	}
	if to.ClaimsSlot() {
		for _, other := range m.bookings {
			if other.ID != b.ID && other.Status.ClaimsSlot() && sameSlot(b, other) {
				return nil, ErrSlotTaken
			}
		}
	}

	b.Status = to
	if cancelledBy != "" {
		b.CancelledBy = cancelledBy
	}
	b.UpdatedAt = m.now()
	cp := *b
	return &cp, nil
}

func (m *MemoryRepository) RejectPendingForSlot(_ context.Context, providerID string, day time.Time, hour slottime.TimeOfDay, exceptID string) ([]*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day = slottime.Date(day)
	var out []*Booking
	for _, b := range m.bookings {
		if b.ID == exceptID || b.Status != StatusPending {
			continue
		}
		if b.ProviderID != providerID || !b.Day.Equal(day) || b.Hour != hour {
			continue
		}
		b.Status = StatusRejected
		b.UpdatedAt = m.now()
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRepository) ClaimedHours(_ context.Context, providerID string, day time.Time) ([]slottime.TimeOfDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day = slottime.Date(day)
	var hours []slottime.TimeOfDay
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.Day.Equal(day) && b.Status.ClaimsSlot() {
			hours = append(hours, b.Hour)
		}
	}
	return hours, nil
}

func (m *MemoryRepository) ListByStatus(_ context.Context, status Status, fromDay, toDay time.Time) ([]*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Booking
	for _, b := range m.bookings {
		if b.Status != status || b.Day.Before(fromDay) || b.Day.After(toDay) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (m *MemoryRepository) CreateReview(_ context.Context, rv *Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reviews[rv.BookingID]; exists {
		return ErrReviewExists
	}
	rv.CreatedAt = m.now()
	cp := *rv
	m.reviews[rv.BookingID] = &cp
	return nil
}

func (m *MemoryRepository) RecomputeProviderRating(_ context.Context, providerID string) (*ProviderRating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum, count int
	for _, rv := range m.reviews {
		if rv.ProviderID == providerID {
			sum += rv.Rating
			count++
		}
	}

	pr := &ProviderRating{ProviderID: providerID, ReviewCount: count, UpdatedAt: m.now()}
	if count > 0 {
		pr.AverageRating = float64(sum) / float64(count)
	}
	m.ratings[providerID] = pr
	cp := *pr
	return &cp, nil
}

// Rating returns the stored rating for a provider, if any.
func (m *MemoryRepository) Rating(providerID string) (ProviderRating, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pr, ok := m.ratings[providerID]
	if !ok {
		return ProviderRating{}, false
	}
	return *pr, true
}

func sameSlot(a, b *Booking) bool {
	return a.ProviderID == b.ProviderID && a.Day.Equal(b.Day) && a.Hour == b.Hour
}

func sameClientSlot(a, b *Booking) bool {
	return a.ClientID == b.ClientID && sameSlot(a, b)
}
