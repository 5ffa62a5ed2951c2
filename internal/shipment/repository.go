package shipment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("shipment: not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const shipmentColumns = `id, code, carrier, tracking_number, status, customer_id, created_by, dispatched_at, delivered_at, created_at, updated_at`

func scanShipment(row pgx.Row) (Shipment, error) {
	var sh Shipment
	err := row.Scan(&sh.ID, &sh.Code, &sh.Carrier, &sh.TrackingNumber, &sh.Status, &sh.CustomerID,
		&sh.CreatedBy, &sh.DispatchedAt, &sh.DeliveredAt, &sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shipment{}, ErrNotFound
	}
	if err != nil {
		return Shipment{}, fmt.Errorf("scan shipment: %w", err)
	}
	return sh, nil
}

func (r *Repository) Create(ctx context.Context, sh Shipment) (Shipment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Shipment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanShipment(tx.QueryRow(ctx,
		`INSERT INTO shipments (code, carrier, tracking_number, status, customer_id, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+shipmentColumns,
		sh.Code, sh.Carrier, sh.TrackingNumber, sh.Status, sh.CustomerID, sh.CreatedBy))
	if err != nil {
		return Shipment{}, err
	}

	batch := &pgx.Batch{}
	for _, unitID := range sh.UnitIDs {
		batch.Queue(`INSERT INTO shipment_units (shipment_id, unit_id) VALUES ($1, $2)`, created.ID, unitID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return Shipment{}, fmt.Errorf("insert shipment units: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Shipment{}, err
	}
	created.UnitIDs = sh.UnitIDs
	return created, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Shipment, error) {
	sh, err := scanShipment(r.pool.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id))
	if err != nil {
		return Shipment{}, err
	}
	sh.UnitIDs, err = r.unitIDs(ctx, id)
	return sh, err
}

func (r *Repository) unitIDs(ctx context.Context, shipmentID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT unit_id FROM shipment_units WHERE shipment_id = $1 ORDER BY unit_id ASC`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list shipment units: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan shipment unit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, sh Shipment) (Shipment, error) {
	updated, err := scanShipment(r.pool.QueryRow(ctx,
		`UPDATE shipments
		 SET status = $2, dispatched_at = $3, delivered_at = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+shipmentColumns,
		sh.ID, sh.Status, sh.DispatchedAt, sh.DeliveredAt))
	if err != nil {
		return Shipment{}, err
	}
	updated.UnitIDs = sh.UnitIDs
	return updated, nil
}

func (r *Repository) List(ctx context.Context, status *Status, limit, offset int) ([]Shipment, int, error) {
	where := "1=1"
	args := []any{}
	idx := 1
	if status != nil {
		where = fmt.Sprintf("status = $%d", idx)
		args = append(args, *status)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shipments WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count shipments: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM shipments WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		shipmentColumns, where, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	var shipments []Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, 0, err
		}
		shipments = append(shipments, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range shipments {
		shipments[i].UnitIDs, err = r.unitIDs(ctx, shipments[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return shipments, total, nil
}
