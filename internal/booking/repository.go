package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/magicparents/carebook/internal/db"
	"github.com/magicparents/carebook/internal/pkg/slottime"
)

const (
	slotClaimConstraint     = "bookings_slot_claim_key"
	clientPendingConstraint = "bookings_client_pending_key"
	reviewPKConstraint      = "reviews_pkey"
)

type Repository interface {
	// WithinTx runs fn against a repository bound to a single transaction.
	WithinTx(ctx context.Context, fn func(Repository) error) error

	// CreateMany inserts bookings whose IDs are already assigned.
	CreateMany(ctx context.Context, bookings []*Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	// GetByIDForUpdate locks the booking row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)

	// TransitionStatus moves a booking from one status to another only if it is
	// still in from. It returns ErrStaleStatus otherwise.
	TransitionStatus(ctx context.Context, id string, from, to Status, cancelledBy ActorKind) (*Booking, error)
	// RejectPendingForSlot rejects every pending booking for the slot except exceptID.
	RejectPendingForSlot(ctx context.Context, providerID string, day time.Time, hour slottime.TimeOfDay, exceptID string) ([]*Booking, error)

	// ClaimedHours returns the hours held by a confirmed-or-better booking on day.
	ClaimedHours(ctx context.Context, providerID string, day time.Time) ([]slottime.TimeOfDay, error)
	// ListByStatus returns bookings in status whose day lies in [fromDay, toDay].
	ListByStatus(ctx context.Context, status Status, fromDay, toDay time.Time) ([]*Booking, error)

	CreateReview(ctx context.Context, r *Review) error
	// RecomputeProviderRating rewrites the provider's rating from all its reviews.
	RecomputeProviderRating(ctx context.Context, providerID string) (*ProviderRating, error)
}

var bookingColumns = []string{
	"id", "request_id", "client_id", "provider_id", "day", "hour", "total_price::float8",
	"status", "location", "cancelled_by", "created_at", "updated_at",
}

type pgxRepository struct {
	pool *pgxpool.Pool
	q    db.Querier
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool, q: pool}
}

func (r *pgxRepository) WithinTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		// Already bound to a transaction.
		return fn(r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgxRepository{q: tx})
	})
}

func (r *pgxRepository) CreateMany(ctx context.Context, bookings []*Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	ins := psql.Insert("public.bookings").
		Columns("id", "request_id", "client_id", "provider_id", "day", "hour", "total_price", "status", "location")
	for _, b := range bookings {
		ins = ins.Values(b.ID, b.RequestID, b.ClientID, b.ProviderID, b.Day, b.Hour.PgTime(), b.TotalPrice, b.Status, b.Location)
	}
	query, args, err := ins.Suffix("RETURNING id, created_at, updated_at").ToSql()
	if err != nil {
		return fmt.Errorf("build create bookings query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return mapWriteError(fmt.Errorf("create bookings failed: %w", err))
	}
	defer rows.Close()

	byID := make(map[string]*Booking, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
	}
	for rows.Next() {
		var id string
		var created, updated time.Time
		if err := rows.Scan(&id, &created, &updated); err != nil {
			return fmt.Errorf("scan created booking failed: %w", err)
		}
		if b, ok := byID[id]; ok {
			b.CreatedAt, b.UpdatedAt = created, updated
		}
	}
	if err := rows.Err(); err != nil {
		return mapWriteError(fmt.Errorf("create bookings failed: %w", err))
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, "")
}

func (r *pgxRepository) GetByIDForUpdate(ctx context.Context, id string) (*Booking, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *pgxRepository) get(ctx context.Context, id, suffix string) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	sb := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"id": id})
	if suffix != "" {
		sb = sb.Suffix(suffix)
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(bookingColumns...).
		Column("count(*) OVER() AS total_count").
		From("public.bookings")

	if filter.ClientID != "" {
		query = query.Where(squirrel.Eq{"client_id": filter.ClientID})
	}
	if filter.ProviderID != "" {
		query = query.Where(squirrel.Eq{"provider_id": filter.ProviderID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	sql, args, err := query.
		OrderBy("day DESC", "hour DESC", "created_at DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		b, err := scanBooking(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}

	return bookings, total, nil
}

func (r *pgxRepository) TransitionStatus(ctx context.Context, id string, from, to Status, cancelledBy ActorKind) (*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	ub := psql.Update("public.bookings").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": from})
	if cancelledBy != "" {
		ub = ub.Set("cancelled_by", cancelledBy)
	}
	query, args, err := ub.Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build transition booking query failed: %w", err)
	}

	b, err := scanBooking(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.staleOrMissing(ctx, id)
		}
		return nil, mapWriteError(fmt.Errorf("transition booking failed: %w", err))
	}
	return b, nil
}

// staleOrMissing explains why a compare-and-swap matched no row.
func (r *pgxRepository) staleOrMissing(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleStatus
}

func (r *pgxRepository) RejectPendingForSlot(ctx context.Context, providerID string, day time.Time, hour slottime.TimeOfDay, exceptID string) ([]*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.bookings").
		Set("status", StatusRejected).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"provider_id": providerID, "day": day, "hour": hour.PgTime(), "status": StatusPending}).
		Where(squirrel.NotEq{"id": exceptID}).
		Suffix("RETURNING " + strings.Join(bookingColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reject pending query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reject pending bookings failed: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgxRepository) ClaimedHours(ctx context.Context, providerID string, day time.Time) ([]slottime.TimeOfDay, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("DISTINCT hour").
		From("public.bookings").
		Where(squirrel.Eq{"provider_id": providerID, "day": day, "status": ClaimStatuses}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claimed hours query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claimed hours failed: %w", err)
	}
	defer rows.Close()

	var hours []slottime.TimeOfDay
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan claimed hour failed: %w", err)
		}
		hours = append(hours, slottime.FromPgTime(t))
	}
	return hours, rows.Err()
}

func (r *pgxRepository) ListByStatus(ctx context.Context, status Status, fromDay, toDay time.Time) ([]*Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"status": status}).
		Where(squirrel.GtOrEq{"day": fromDay}).
		Where(squirrel.LtOrEq{"day": toDay}).
		OrderBy("day", "hour").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list by status query failed: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings by status failed: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgxRepository) CreateReview(ctx context.Context, rv *Review) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.reviews").
		Columns("booking_id", "client_id", "provider_id", "rating").
		Values(rv.BookingID, rv.ClientID, rv.ProviderID, rv.Rating).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create review query failed: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&rv.CreatedAt); err != nil {
		return mapWriteError(fmt.Errorf("create review failed: %w", err))
	}
	return nil
}

const recomputeRatingSQL = `
INSERT INTO public.provider_ratings (provider_id, average_rating, review_count, updated_at)
SELECT $1::uuid, COALESCE(AVG(rating), 0), COUNT(*), now()
FROM public.reviews WHERE provider_id = $1::uuid
ON CONFLICT (provider_id) DO UPDATE
SET average_rating = EXCLUDED.average_rating,
	review_count = EXCLUDED.review_count,
	updated_at = EXCLUDED.updated_at
RETURNING provider_id, average_rating::float8, review_count, updated_at`

func (r *pgxRepository) RecomputeProviderRating(ctx context.Context, providerID string) (*ProviderRating, error) {
	var pr ProviderRating
	if err := r.q.QueryRow(ctx, recomputeRatingSQL, providerID).Scan(
		&pr.ProviderID, &pr.AverageRating, &pr.ReviewCount, &pr.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("recompute provider rating failed: %w", err)
	}
	return &pr, nil
}

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var b Booking
	var hour pgtype.Time
	var cancelledBy *string
	dest := []any{
		&b.ID, &b.RequestID, &b.ClientID, &b.ProviderID, &b.Day, &hour, &b.TotalPrice,
		&b.Status, &b.Location, &cancelledBy, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.Hour = slottime.FromPgTime(hour)
	if cancelledBy != nil {
		b.CancelledBy = ActorKind(*cancelledBy)
	}
	return &b, nil
}

func mapWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err, slotClaimConstraint):
		return ErrSlotTaken
	case db.IsUniqueViolation(err, clientPendingConstraint):
		return ErrDuplicateRequest
	case db.IsUniqueViolation(err, reviewPKConstraint):
		return ErrReviewExists
	}
	return err
}
