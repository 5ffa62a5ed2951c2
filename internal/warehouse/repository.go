package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixflow-erp/fixflow/internal/history"
)

var ErrNotFound = errors.New("warehouse: not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// unitRef is the slice of unit state a move needs.
type unitRef struct {
	ID         int64
	LocationID *int64
}

// TxRepository exposes the per-move transactional operations.
type TxRepository interface {
	GetUnitForUpdate(ctx context.Context, id int64) (unitRef, error)
	SetUnitLocation(ctx context.Context, unitID, locationID int64, actorID int64) error
	RecountLocation(ctx context.Context, locationID int64) (int, error)
	Querier() history.Querier
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (t *txRepository) Querier() history.Querier { return t.tx }

func (t *txRepository) GetUnitForUpdate(ctx context.Context, id int64) (unitRef, error) {
	var ref unitRef
	err := t.tx.QueryRow(ctx,
		`SELECT id, location_id FROM units WHERE id = $1 FOR UPDATE`, id,
	).Scan(&ref.ID, &ref.LocationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return unitRef{}, ErrNotFound
	}
	if err != nil {
		return unitRef{}, fmt.Errorf("get unit for update: %w", err)
	}
	return ref, nil
}

func (t *txRepository) SetUnitLocation(ctx context.Context, unitID, locationID int64, actorID int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE units SET location_id = $2, updated_by = $3, updated_at = now() WHERE id = $1`,
		unitID, locationID, actorID,
	)
	if err != nil {
		return fmt.Errorf("set unit location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecountLocation recomputes current_count from the units table. Counts are
// always derived from source, never incremented in place.
func (t *txRepository) RecountLocation(ctx context.Context, locationID int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx,
		`UPDATE locations
		 SET current_count = (SELECT COUNT(*) FROM units WHERE location_id = $1), updated_at = now()
		 WHERE id = $1
		 RETURNING current_count`, locationID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("recount location: %w", err)
	}
	return count, nil
}

func (r *Repository) GetLocationRef(ctx context.Context, id int64) (LocationRef, error) {
	var ref LocationRef
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, capacity, current_count FROM locations WHERE id = $1`, id,
	).Scan(&ref.ID, &ref.Name, &ref.Capacity, &ref.CurrentCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return LocationRef{}, ErrNotFound
	}
	if err != nil {
		return LocationRef{}, fmt.Errorf("get location: %w", err)
	}
	return ref, nil
}

func (r *Repository) ListLocationRefs(ctx context.Context) ([]LocationRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, capacity, current_count FROM locations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var refs []LocationRef
	for rows.Next() {
		var ref LocationRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Capacity, &ref.CurrentCount); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *Repository) InsertCount(ctx context.Context, rec *CountRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO inventory_counts (session_id, location_id, counter_id, completed_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		rec.SessionID, rec.LocationID, rec.CounterID, rec.CompletedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert count: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range rec.Items {
		batch.Queue(
			`INSERT INTO inventory_count_items (count_id, unit_id, expected, actual, variance, notes)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.ID, item.UnitID, item.Expected, item.Actual, item.Variance, item.Notes,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert count items: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListCounts(ctx context.Context, locationID int64, limit int) ([]CountRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, location_id, counter_id, completed_at
		 FROM inventory_counts
		 WHERE location_id = $1
		 ORDER BY completed_at DESC, id DESC
		 LIMIT $2`, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list counts: %w", err)
	}
	defer rows.Close()

	var recs []CountRecord
	for rows.Next() {
		var rec CountRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.LocationID, &rec.CounterID, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		items, err := r.countItems(ctx, recs[i].ID)
		if err != nil {
			return nil, err
		}
		recs[i].Items = items
	}
	return recs, nil
}

func (r *Repository) countItems(ctx context.Context, countID int64) ([]CountItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT unit_id, expected, actual, variance, notes
		 FROM inventory_count_items
		 WHERE count_id = $1
		 ORDER BY unit_id ASC`, countID)
	if err != nil {
		return nil, fmt.Errorf("list count items: %w", err)
	}
	defer rows.Close()

	var items []CountItem
	for rows.Next() {
		var item CountItem
		if err := rows.Scan(&item.UnitID, &item.Expected, &item.Actual, &item.Variance, &item.Notes); err != nil {
			return nil, fmt.Errorf("scan count item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// EmptyLocations returns locations currently holding zero units.
func (r *Repository) EmptyLocations(ctx context.Context) ([]LocationRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.name, l.capacity, l.current_count
		 FROM locations l
		 WHERE NOT EXISTS (SELECT 1 FROM units u WHERE u.location_id = l.id)
		 ORDER BY l.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("empty locations: %w", err)
	}
	defer rows.Close()

	var refs []LocationRef
	for rows.Next() {
		var ref LocationRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Capacity, &ref.CurrentCount); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// UnitsGroupedByStatus aggregates unit counts per location for the given
// statuses. Units without a location are grouped under location id 0.
func (r *Repository) UnitsGroupedByStatus(ctx context.Context, statuses []string) ([]StatusGroup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT COALESCE(u.location_id, 0), COALESCE(l.name, ''), u.status, COUNT(*)
		 FROM units u
		 LEFT JOIN locations l ON l.id = u.location_id
		 WHERE u.status = ANY($1)
		 GROUP BY u.location_id, l.name, u.status
		 ORDER BY COUNT(*) DESC`, statuses)
	if err != nil {
		return nil, fmt.Errorf("group units by status: %w", err)
	}
	defer rows.Close()

	var groups []StatusGroup
	for rows.Next() {
		var g StatusGroup
		if err := rows.Scan(&g.LocationID, &g.LocationName, &g.Status, &g.Count); err != nil {
			return nil, fmt.Errorf("scan status group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
