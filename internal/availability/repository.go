package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/magicparents/carebook/internal/db"
	"github.com/magicparents/carebook/internal/pkg/apperror"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

type Repository interface {
	// ReplaceDay swaps the provider's slots for date with one slot per hour, atomically.
	// An empty hours slice clears the day. Concurrent replaces of the same day
	// run one after the other.
	ReplaceDay(ctx context.Context, providerID string, date time.Time, hours []slottime.TimeOfDay) ([]*Slot, error)
	// HoursForDay returns the declared start times for the day, in no particular order.
	HoursForDay(ctx context.Context, providerID string, date time.Time) ([]slottime.TimeOfDay, error)
	// DistinctDays returns every date with at least one declared slot.
	DistinctDays(ctx context.Context, providerID string) ([]time.Time, error)
	// RollForward copies every not yet rolled slot dated before the given day
	// seven days ahead and marks the original as rolled.
	RollForward(ctx context.Context, before time.Time) (RollResult, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

const slotKeyConstraint = "availability_slots_provider_date_start_key"

// lockDaySQL serializes replaces of one provider's day until the transaction ends.
const lockDaySQL = `SELECT pg_advisory_xact_lock(hashtextextended($1::text || '/' || $2::text, 0))`

func (r *pgxRepository) ReplaceDay(ctx context.Context, providerID string, date time.Time, hours []slottime.TimeOfDay) ([]*Slot, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	delQuery, delArgs, err := psql.Delete("public.availability_slots").
		Where(squirrel.Eq{"provider_id": providerID, "date": date}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete slots query failed: %w", err)
	}

	var insQuery string
	var insArgs []any
	if len(hours) > 0 {
		ins := psql.Insert("public.availability_slots").
			Columns("provider_id", "date", "start_time")
		for _, h := range hours {
			ins = ins.Values(providerID, date, h.PgTime())
		}
		insQuery, insArgs, err = ins.
			Suffix("RETURNING id, provider_id, date, start_time, end_time, rolled_forward, created_at").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build insert slots query failed: %w", err)
		}
	}

	slots := make([]*Slot, 0, len(hours))
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockDaySQL, providerID, date.Format(slottime.DateLayout)); err != nil {
			return fmt.Errorf("lock availability day failed: %w", err)
		}
		if _, err := tx.Exec(ctx, delQuery, delArgs...); err != nil {
			return fmt.Errorf("delete slots failed: %w", err)
		}
		if insQuery == "" {
			return nil
		}

		rows, err := tx.Query(ctx, insQuery, insArgs...)
		if err != nil {
			return mapSlotWriteError(fmt.Errorf("insert slots failed: %w", err))
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanSlot(rows)
			if err != nil {
				return err
			}
			slots = append(slots, s)
		}
		if err := rows.Err(); err != nil {
			return mapSlotWriteError(fmt.Errorf("insert slots failed: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return slots, nil
}

func (r *pgxRepository) HoursForDay(ctx context.Context, providerID string, date time.Time) ([]slottime.TimeOfDay, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("start_time").
		From("public.availability_slots").
		Where(squirrel.Eq{"provider_id": providerID, "date": date}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build hours for day query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list hours for day failed: %w", err)
	}
	defer rows.Close()

	var hours []slottime.TimeOfDay
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan hour failed: %w", err)
		}
		hours = append(hours, slottime.FromPgTime(t))
	}
	return hours, rows.Err()
}

func (r *pgxRepository) DistinctDays(ctx context.Context, providerID string) ([]time.Time, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("DISTINCT date").
		From("public.availability_slots").
		Where(squirrel.Eq{"provider_id": providerID}).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build distinct days query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list distinct days failed: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan day failed: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// rollForwardSQL marks due slots and materializes their copies in a single statement,
// so concurrent runs never both copy the same slot.
const rollForwardSQL = `
WITH due AS (
	UPDATE public.availability_slots
	SET rolled_forward = true
	WHERE date < $1 AND NOT rolled_forward
	RETURNING provider_id, date, start_time
), ins AS (
	INSERT INTO public.availability_slots (provider_id, date, start_time)
	SELECT provider_id, date + 7, start_time FROM due
	ON CONFLICT (provider_id, date, start_time) DO NOTHING
	RETURNING 1
)
SELECT (SELECT count(*) FROM due), (SELECT count(*) FROM ins)`

func (r *pgxRepository) RollForward(ctx context.Context, before time.Time) (RollResult, error) {
	var rolled, inserted int64
	if err := r.pool.QueryRow(ctx, rollForwardSQL, before).Scan(&rolled, &inserted); err != nil {
		return RollResult{}, fmt.Errorf("roll forward slots failed: %w", err)
	}
	return RollResult{Rolled: int(rolled), Inserted: int(inserted)}, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var start, end pgtype.Time
	if err := row.Scan(&s.ID, &s.ProviderID, &s.Date, &start, &end, &s.RolledForward, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan slot failed: %w", err)
	}
	s.StartTime = slottime.FromPgTime(start)
	s.EndTime = slottime.FromPgTime(end)
	return &s, nil
}

// mapSlotWriteError turns a clash with a slot written by the roll-forward job
// into a retryable conflict.
func mapSlotWriteError(err error) error {
	if db.IsUniqueViolation(err, slotKeyConstraint) {
		return apperror.Wrap(err, ErrConcurrentEdit.Code, ErrConcurrentEdit.Message)
	}
	return err
}
