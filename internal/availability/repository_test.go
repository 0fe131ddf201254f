package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicparents/carebook/internal/db/dbtest"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

func TestPgxRepository(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewPgxRepository(pool)
	ctx := context.Background()
	provider := dbtest.CreateUser(t, pool, "provider", 30, "Taipei")
	date := mustDate(t, "2025-06-10")

	t.Run("replace day swaps the whole set", func(t *testing.T) {
		_, err := repo.ReplaceDay(ctx, provider, date, []slottime.TimeOfDay{slottime.At(9, 0), slottime.At(10, 0)})
		require.NoError(t, err)

		slots, err := repo.ReplaceDay(ctx, provider, date, []slottime.TimeOfDay{slottime.At(13, 0), slottime.At(23, 0)})
		require.NoError(t, err)
		require.Len(t, slots, 2)
		for _, s := range slots {
			assert.Equal(t, "2025-06-10", s.Date.Format(slottime.DateLayout))
			assert.False(t, s.RolledForward)
		}

		hours, err := repo.HoursForDay(ctx, provider, date)
		require.NoError(t, err)
		slottime.Sort(hours)
		assert.Equal(t, []string{"13:00", "23:00"}, slottime.Strings(hours))
	})

	t.Run("generated end time wraps at midnight", func(t *testing.T) {
		slots, err := repo.ReplaceDay(ctx, provider, date, []slottime.TimeOfDay{slottime.At(23, 0)})
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, endOf(slottime.At(23, 0)), slots[0].EndTime)
	})

	t.Run("empty set clears the day", func(t *testing.T) {
		_, err := repo.ReplaceDay(ctx, provider, date, nil)
		require.NoError(t, err)

		hours, err := repo.HoursForDay(ctx, provider, date)
		require.NoError(t, err)
		assert.Empty(t, hours)
	})

	t.Run("concurrent replaces of one day never merge", func(t *testing.T) {
		sets := [][]slottime.TimeOfDay{
			{slottime.At(8, 0)},
			{slottime.At(9, 0), slottime.At(10, 0)},
			{slottime.At(10, 0), slottime.At(11, 0)},
			{slottime.At(12, 0)},
			{slottime.At(8, 0), slottime.At(12, 0), slottime.At(13, 0)},
		}

		for round := 0; round < 10; round++ {
			var wg sync.WaitGroup
			errs := make([]error, len(sets))
			for i, hours := range sets {
				wg.Add(1)
				go func(i int, hours []slottime.TimeOfDay) {
					defer wg.Done()
					_, errs[i] = repo.ReplaceDay(ctx, provider, date, hours)
				}(i, hours)
			}
			wg.Wait()
			for _, err := range errs {
				require.NoError(t, err)
			}

			got, err := repo.HoursForDay(ctx, provider, date)
			require.NoError(t, err)
			slottime.Sort(got)

			var matched bool
			for _, hours := range sets {
				if assert.ObjectsAreEqual(slottime.Strings(hours), slottime.Strings(got)) {
					matched = true
				}
			}
			assert.True(t, matched, "round %d left %v", round, slottime.Strings(got))
		}

		_, err := repo.ReplaceDay(ctx, provider, date, nil)
		require.NoError(t, err)
	})

	t.Run("distinct days are ordered", func(t *testing.T) {
		for _, d := range []string{"2025-06-12", "2025-06-11"} {
			_, err := repo.ReplaceDay(ctx, provider, mustDate(t, d), []slottime.TimeOfDay{slottime.At(9, 0), slottime.At(10, 0)})
			require.NoError(t, err)
		}

		days, err := repo.DistinctDays(ctx, provider)
		require.NoError(t, err)
		require.Len(t, days, 2)
		assert.Equal(t, "2025-06-11", days[0].Format(slottime.DateLayout))
		assert.Equal(t, "2025-06-12", days[1].Format(slottime.DateLayout))
	})
}

func TestPgxRollForward(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewPgxRepository(pool)
	ctx := context.Background()
	provider := dbtest.CreateUser(t, pool, "provider", 30, "")

	_, err := repo.ReplaceDay(ctx, provider, mustDate(t, "2025-06-01"), []slottime.TimeOfDay{slottime.At(9, 0), slottime.At(10, 0)})
	require.NoError(t, err)
	_, err = repo.ReplaceDay(ctx, provider, mustDate(t, "2025-06-08"), []slottime.TimeOfDay{slottime.At(9, 0)})
	require.NoError(t, err)

	res, err := repo.RollForward(ctx, mustDate(t, "2025-06-05"))
	require.NoError(t, err)
	assert.Equal(t, RollResult{Rolled: 2, Inserted: 1}, res)

	hours, err := repo.HoursForDay(ctx, provider, mustDate(t, "2025-06-08"))
	require.NoError(t, err)
	slottime.Sort(hours)
	assert.Equal(t, []string{"09:00", "10:00"}, slottime.Strings(hours))

	// History stays in place.
	hours, err = repo.HoursForDay(ctx, provider, mustDate(t, "2025-06-01"))
	require.NoError(t, err)
	assert.Len(t, hours, 2)

	res, err = repo.RollForward(ctx, mustDate(t, "2025-06-05"))
	require.NoError(t, err)
	assert.Equal(t, RollResult{}, res)
}

func TestMapSlotWriteError(t *testing.T) {
	clash := fmt.Errorf("insert slots failed: %w", &pgconn.PgError{Code: "23505", ConstraintName: slotKeyConstraint})
	err := mapSlotWriteError(clash)
	assert.ErrorIs(t, err, ErrConcurrentEdit)

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr), "cause is kept")

	other := errors.New("connection reset")
	assert.Equal(t, other, mapSlotWriteError(other))
}
