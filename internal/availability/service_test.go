package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/magicparents/carebook/internal/pkg/clock"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

const providerID = "11111111-1111-1111-1111-111111111111"

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := slottime.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newTestService(now time.Time) (Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewService(repo, clock.NewFixed(now), time.UTC, zap.NewNop()), repo
}

func TestReplaceDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("replaces and deduplicates", func(t *testing.T) {
		svc, _ := newTestService(now)
		date := mustDate(t, "2025-06-10")

		_, err := svc.ReplaceDay(ctx, providerID, date, []slottime.TimeOfDay{slottime.At(9, 0), slottime.At(10, 0)})
		require.NoError(t, err)

		slots, err := svc.ReplaceDay(ctx, providerID, date, []slottime.TimeOfDay{slottime.At(14, 0), slottime.At(13, 0), slottime.At(14, 0)})
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, slottime.At(13, 0), slots[0].StartTime)
		assert.Equal(t, slottime.At(14, 0), slots[0].EndTime)

		hours, err := svc.HoursForDay(ctx, providerID, date)
		require.NoError(t, err)
		assert.Equal(t, []string{"13:00", "14:00"}, slottime.Strings(hours))
	})

	t.Run("empty hours clears the day", func(t *testing.T) {
		svc, _ := newTestService(now)
		date := mustDate(t, "2025-06-10")

		_, err := svc.ReplaceDay(ctx, providerID, date, []slottime.TimeOfDay{slottime.At(9, 0)})
		require.NoError(t, err)
		_, err = svc.ReplaceDay(ctx, providerID, date, nil)
		require.NoError(t, err)

		hours, err := svc.HoursForDay(ctx, providerID, date)
		require.NoError(t, err)
		assert.Empty(t, hours)
	})

	t.Run("today is allowed", func(t *testing.T) {
		svc, _ := newTestService(now)
		_, err := svc.ReplaceDay(ctx, providerID, mustDate(t, "2025-06-01"), []slottime.TimeOfDay{slottime.At(20, 0)})
		assert.NoError(t, err)
	})

	t.Run("past date is refused", func(t *testing.T) {
		svc, _ := newTestService(now)
		_, err := svc.ReplaceDay(ctx, providerID, mustDate(t, "2025-05-31"), []slottime.TimeOfDay{slottime.At(9, 0)})
		assert.ErrorIs(t, err, ErrPastDate)
	})

	t.Run("partial hour is refused and prior day kept", func(t *testing.T) {
		svc, _ := newTestService(now)
		date := mustDate(t, "2025-06-10")
		_, err := svc.ReplaceDay(ctx, providerID, date, []slottime.TimeOfDay{slottime.At(9, 0)})
		require.NoError(t, err)

		_, err = svc.ReplaceDay(ctx, providerID, date, []slottime.TimeOfDay{slottime.At(9, 30)})
		assert.ErrorIs(t, err, ErrInvalidHour)

		hours, err := svc.HoursForDay(ctx, providerID, date)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00"}, slottime.Strings(hours))
	})

	t.Run("last slot of the day wraps end time", func(t *testing.T) {
		svc, _ := newTestService(now)
		slots, err := svc.ReplaceDay(ctx, providerID, mustDate(t, "2025-06-10"), []slottime.TimeOfDay{slottime.At(23, 0)})
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, "00:00", slots[0].EndTime.String())
	})
}

func TestMemoryRollForward(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	may20 := mustDate(t, "2025-05-20")

	_, err := repo.ReplaceDay(ctx, providerID, may20, []slottime.TimeOfDay{slottime.At(9, 0)})
	require.NoError(t, err)

	today := mustDate(t, "2025-06-05")
	var passes int
	for {
		res, err := repo.RollForward(ctx, today)
		require.NoError(t, err)
		if res.Rolled == 0 {
			break
		}
		passes++
		require.Less(t, passes, 10)
	}

	// 05-20 rolls to 05-27, then 06-03, then 06-10; history stays.
	slots := repo.Slots()
	require.Len(t, slots, 4)
	assert.Equal(t, mustDate(t, "2025-06-10"), slots[3].Date)
	assert.False(t, slots[3].RolledForward)
	for _, s := range slots[:3] {
		assert.True(t, s.RolledForward)
		assert.Equal(t, slottime.At(9, 0), s.StartTime)
	}
}

func TestMemoryRollForwardSkipsExistingTarget(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.ReplaceDay(ctx, providerID, mustDate(t, "2025-06-01"), []slottime.TimeOfDay{slottime.At(9, 0)})
	require.NoError(t, err)
	_, err = repo.ReplaceDay(ctx, providerID, mustDate(t, "2025-06-08"), []slottime.TimeOfDay{slottime.At(9, 0)})
	require.NoError(t, err)

	res, err := repo.RollForward(ctx, mustDate(t, "2025-06-05"))
	require.NoError(t, err)
	assert.Equal(t, RollResult{Rolled: 1, Inserted: 0}, res)
	assert.Len(t, repo.Slots(), 2)
}
