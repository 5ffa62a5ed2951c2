package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixflow-erp/fixflow/internal/history"
)

var (
	// ErrNotFound indicates a missing unit.
	ErrNotFound = errors.New("product: unit not found")
	// ErrSerialTaken indicates the serial number is already assigned to
	// another unit. The storage UNIQUE constraint is the authoritative guard.
	ErrSerialTaken = errors.New("product: serial number already in use")
)

// Repository persists units in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. Querier
// lets the history ledger append inside the same transaction.
type TxRepository interface {
	GetUnitForUpdate(ctx context.Context, id int64) (Unit, error)
	InsertUnits(ctx context.Context, units []Unit) ([]Unit, error)
	UpdateUnit(ctx context.Context, u Unit) error
	SerialExists(ctx context.Context, serial string, excludeID int64) (bool, error)
	RecountLocation(ctx context.Context, locationID int64) (int, error)
	DeleteUnit(ctx context.Context, id int64) error
	Querier() history.Querier
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const unitColumns = `id, model_id, status, serial_number, location_id, owner_id,
	warranty_start, warranty_months, production_date, sold_at,
	hw_verified_by, hw_verified_at, created_by, updated_by, created_at, updated_at`

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.ModelID, &u.Status, &u.SerialNumber, &u.LocationID, &u.OwnerID,
		&u.WarrantyStart, &u.WarrantyMonths, &u.ProductionDate, &u.SoldAt,
		&u.HardwareVerifiedBy, &u.HardwareVerifiedAt, &u.CreatedBy, &u.UpdatedBy, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrNotFound
	}
	return u, err
}

// Get loads one unit by id.
func (r *Repository) Get(ctx context.Context, id int64) (Unit, error) {
	return scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id))
}

// List returns units matching the filter plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Unit, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if filter.Status != nil {
		where += ` AND status = ` + arg(*filter.Status)
	}
	if filter.ModelID != nil {
		where += ` AND model_id = ` + arg(*filter.ModelID)
	}
	if filter.LocationID != nil {
		where += ` AND location_id = ` + arg(*filter.LocationID)
	}
	if filter.OwnerID != nil {
		where += ` AND owner_id = ` + arg(*filter.OwnerID)
	}
	if filter.Serial != "" {
		where += ` AND serial_number ILIKE '%' || ` + arg(filter.Serial) + ` || '%'`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM units`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + unitColumns + ` FROM units` + where +
		` ORDER BY id DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.ModelID, &u.Status, &u.SerialNumber, &u.LocationID, &u.OwnerID,
			&u.WarrantyStart, &u.WarrantyMonths, &u.ProductionDate, &u.SoldAt,
			&u.HardwareVerifiedBy, &u.HardwareVerifiedAt, &u.CreatedBy, &u.UpdatedBy, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		units = append(units, u)
	}
	return units, total, rows.Err()
}

func (t *txRepo) Querier() history.Querier {
	return t.tx
}

func (t *txRepo) GetUnitForUpdate(ctx context.Context, id int64) (Unit, error) {
	return scanUnit(t.tx.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) InsertUnits(ctx context.Context, units []Unit) ([]Unit, error) {
	const query = `INSERT INTO units
		(model_id, status, serial_number, location_id, owner_id, production_date, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8, $8) RETURNING id`
	now := time.Now()
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		u.CreatedAt = now
		u.UpdatedAt = now
		u.UpdatedBy = u.CreatedBy
		err := t.tx.QueryRow(ctx, query,
			u.ModelID, u.Status, u.SerialNumber, u.LocationID, u.OwnerID,
			u.ProductionDate, u.CreatedBy, now,
		).Scan(&u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (t *txRepo) UpdateUnit(ctx context.Context, u Unit) error {
	const query = `UPDATE units SET
		status = $1, serial_number = $2, location_id = $3, owner_id = $4,
		warranty_start = $5, warranty_months = $6, sold_at = $7,
		hw_verified_by = $8, hw_verified_at = $9, updated_by = $10, updated_at = $11
		WHERE id = $12`
	tag, err := t.tx.Exec(ctx, query,
		u.Status, u.SerialNumber, u.LocationID, u.OwnerID,
		u.WarrantyStart, u.WarrantyMonths, u.SoldAt,
		u.HardwareVerifiedBy, u.HardwareVerifiedAt, u.UpdatedBy, time.Now(), u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSerialTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SerialExists(ctx context.Context, serial string, excludeID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM units WHERE serial_number = $1 AND id <> $2)`,
		serial, excludeID).Scan(&exists)
	return exists, err
}

func (t *txRepo) RecountLocation(ctx context.Context, locationID int64) (int, error) {
	const query = `UPDATE locations
		SET current_count = (SELECT COUNT(*) FROM units WHERE location_id = $1), updated_at = NOW()
		WHERE id = $1
		RETURNING current_count`
	var count int
	err := t.tx.QueryRow(ctx, query, locationID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return count, err
}

func (t *txRepo) DeleteUnit(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
