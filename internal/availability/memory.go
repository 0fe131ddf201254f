package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/magicparents/carebook/internal/pkg/slottime"
)

type slotKey struct {
	providerID string
	date       time.Time
	start      slottime.TimeOfDay
}

// MemoryRepository is an in-process Repository. Its mutex serializes every
// call, which covers the per-day serialization the Postgres one gets from an
// advisory lock. Tests across packages use it in place of a database.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	slots  map[slotKey]*Slot
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots: make(map[slotKey]*Slot),
		now:   time.Now,
	}
}

func (m *MemoryRepository) ReplaceDay(_ context.Context, providerID string, date time.Time, hours []slottime.TimeOfDay) ([]*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	date = slottime.Date(date)
	for k := range m.slots {
		if k.providerID == providerID && k.date.Equal(date) {
			delete(m.slots, k)
		}
	}

	out := make([]*Slot, 0, len(hours))
	for _, h := range hours {
		s := m.insert(providerID, date, h)
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRepository) HoursForDay(_ context.Context, providerID string, date time.Time) ([]slottime.TimeOfDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	date = slottime.Date(date)
	var hours []slottime.TimeOfDay
	for k := range m.slots {
		if k.providerID == providerID && k.date.Equal(date) {
			hours = append(hours, k.start)
		}
	}
	return hours, nil
}

func (m *MemoryRepository) DistinctDays(_ context.Context, providerID string) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[time.Time]struct{})
	var days []time.Time
	for k := range m.slots {
		if k.providerID != providerID {
			continue
		}
		if _, ok := seen[k.date]; ok {
			continue
		}
		seen[k.date] = struct{}{}
		days = append(days, k.date)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (m *MemoryRepository) RollForward(_ context.Context, before time.Time) (RollResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before = slottime.Date(before)
	var due []*Slot
	for _, s := range m.slots {
		if s.Date.Before(before) && !s.RolledForward {
			due = append(due, s)
		}
	}

	var res RollResult
	for _, s := range due {
		s.RolledForward = true
		res.Rolled++

		next := slotKey{providerID: s.ProviderID, date: s.Date.AddDate(0, 0, 7), start: s.StartTime}
		if _, exists := m.slots[next]; exists {
			continue
		}
		m.insert(next.providerID, next.date, next.start)
		res.Inserted++
	}
	return res, nil
}

// Slots returns copies of every stored slot, ordered by provider, date and start time.
func (m *MemoryRepository) Slots() []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProviderID != b.ProviderID {
			return a.ProviderID < b.ProviderID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.StartTime < b.StartTime
	})
	return out
}

func (m *MemoryRepository) insert(providerID string, date time.Time, h slottime.TimeOfDay) *Slot {
	m.nextID++
	s := &Slot{
		ID:         m.nextID,
		ProviderID: providerID,
		Date:       date,
		StartTime:  h,
		EndTime:    endOf(h),
		CreatedAt:  m.now(),
	}
	m.slots[slotKey{providerID: providerID, date: date, start: h}] = s
	return s
}
