package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the audit_logs table. Writes go through shared.AuditLogger.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, actor_id, action, entity, entity_id, meta, occurred_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.OccurredAt)
	return e, err
}

// Timeline returns entries newest first. It fetches limit rows starting at
// offset; callers over-fetch by one row to detect a next page.
func (r *Repository) Timeline(ctx context.Context, f Filters, limit, offset int) ([]Entry, error) {
	conds := []string{"1=1"}
	args := []any{}
	idx := 1
	if !f.From.IsZero() {
		conds = append(conds, fmt.Sprintf("occurred_at >= $%d", idx))
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		conds = append(conds, fmt.Sprintf("occurred_at < $%d", idx))
		args = append(args, f.To)
		idx++
	}
	if f.ActorID != 0 {
		conds = append(conds, fmt.Sprintf("actor_id = $%d", idx))
		args = append(args, f.ActorID)
		idx++
	}
	if f.Entity != "" {
		conds = append(conds, fmt.Sprintf("entity = $%d", idx))
		args = append(args, f.Entity)
		idx++
	}
	if f.Action != "" {
		conds = append(conds, fmt.Sprintf("action = $%d", idx))
		args = append(args, f.Action)
		idx++
	}
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, strings.Join(conds, " AND "), idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit timeline: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
