package location

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the location does not exist.
var ErrNotFound = errors.New("location: not found")

// Repository persists locations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const locationColumns = `id, name, loc_type, address, notes, capacity, current_count, created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Name, &l.Type, &l.Address, &l.Notes, &l.Capacity, &l.CurrentCount, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return l, err
}

func (r *Repository) List(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.Address, &l.Notes, &l.Capacity, &l.CurrentCount, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (Location, error) {
	return scanLocation(r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) Create(ctx context.Context, l Location) (Location, error) {
	query := `INSERT INTO locations (name, loc_type, address, notes, capacity, current_count, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, 0, $6, $6) RETURNING id`
	now := time.Now()
	if err := r.pool.QueryRow(ctx, query, l.Name, l.Type, l.Address, l.Notes, l.Capacity, now).Scan(&l.ID); err != nil {
		return Location{}, err
	}
	l.CreatedAt = now
	l.UpdatedAt = now
	return l, nil
}

func (r *Repository) Update(ctx context.Context, l Location) error {
	query := `UPDATE locations SET name = $1, loc_type = $2, address = $3, notes = $4, capacity = $5, updated_at = $6 WHERE id = $7`
	tag, err := r.pool.Exec(ctx, query, l.Name, l.Type, l.Address, l.Notes, l.Capacity, time.Now(), l.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecomputeCurrentCount recounts live units assigned to the location and
// persists the result. Counts are derived from the units table, the single
// source of truth, never incremented in place.
func (r *Repository) RecomputeCurrentCount(ctx context.Context, id int64) (int, error) {
	query := `UPDATE locations
	          SET current_count = (SELECT COUNT(*) FROM units WHERE location_id = $1), updated_at = NOW()
	          WHERE id = $1
	          RETURNING current_count`
	var count int
	err := r.pool.QueryRow(ctx, query, id).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return count, err
}
