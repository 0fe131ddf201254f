package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory resolves clients and providers by id. It never mutates identity records.
type Directory interface {
	GetByID(ctx context.Context, id string) (*Party, error)
}

type pgxDirectory struct {
	pool *pgxpool.Pool
}

// NewPgxDirectory creates a Directory backed by the users table.
func NewPgxDirectory(pool *pgxpool.Pool) Directory {
	return &pgxDirectory{pool: pool}
}

func (d *pgxDirectory) GetByID(ctx context.Context, id string) (*Party, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"id", "email", "COALESCE(display_name, '')", "role", "hour_price::float8", "location",
	).
		From("public.users").
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get party query failed: %w", err)
	}

	var p Party
	if err := d.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.Role, &p.HourPrice, &p.Location,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get party failed: %w", err)
	}
	return &p, nil
}
