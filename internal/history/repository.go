package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx operations the ledger needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so lifecycle operations can append entries inside
// their own transaction boundary.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists ledger entries in PostgreSQL. Inserts only; updates and
// deletes are not implemented on purpose.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertEntry = `INSERT INTO history_entries
	(unit_id, event_type, description, performer_id, location_id, issue_id, shipment_id, service_op_id, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

// Append inserts one entry using the given querier.
func (r *Repository) Append(ctx context.Context, q Querier, e Entry) (Entry, error) {
	if q == nil {
		q = r.pool
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	err := q.QueryRow(ctx, insertEntry,
		e.UnitID, e.EventType, e.Description, e.PerformerID,
		e.LocationID, e.IssueID, e.ShipmentID, e.ServiceOpID, e.OccurredAt,
	).Scan(&e.ID)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// AppendMany inserts one entry per unit in a single pass. Intake uses this to
// record a batch without a round trip per unit.
func (r *Repository) AppendMany(ctx context.Context, q Querier, entries []Entry) error {
	if q == nil {
		q = r.pool
	}
	now := time.Now()
	batch := &pgx.Batch{}
	for _, e := range entries {
		at := e.OccurredAt
		if at.IsZero() {
			at = now
		}
		batch.Queue(insertEntry,
			e.UnitID, e.EventType, e.Description, e.PerformerID,
			e.LocationID, e.IssueID, e.ShipmentID, e.ServiceOpID, at,
		)
	}
	switch db := q.(type) {
	case *pgxpool.Pool:
		return db.SendBatch(ctx, batch).Close()
	case pgx.Tx:
		return db.SendBatch(ctx, batch).Close()
	default:
		for _, e := range entries {
			if _, err := r.Append(ctx, q, e); err != nil {
				return err
			}
		}
		return nil
	}
}

// ListFor returns the unit's entries ordered newest-first, ties broken by
// insertion order.
func (r *Repository) ListFor(ctx context.Context, unitID int64) ([]Entry, error) {
	query := `SELECT id, unit_id, event_type, description, performer_id, location_id, issue_id, shipment_id, service_op_id, occurred_at
	          FROM history_entries WHERE unit_id = $1 ORDER BY occurred_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UnitID, &e.EventType, &e.Description, &e.PerformerID, &e.LocationID, &e.IssueID, &e.ShipmentID, &e.ServiceOpID, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
