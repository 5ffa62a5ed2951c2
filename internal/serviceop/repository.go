package serviceop

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, op Operation) (Operation, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO service_operations (issue_id, unit_id, op_type, notes, performed_by, performed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		op.IssueID, op.UnitID, op.Type, op.Notes, op.PerformedBy, op.PerformedAt,
	).Scan(&op.ID)
	if err != nil {
		return Operation{}, fmt.Errorf("insert service operation: %w", err)
	}
	return op, nil
}

func (r *Repository) ListForIssue(ctx context.Context, issueID int64) ([]Operation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, issue_id, unit_id, op_type, notes, performed_by, performed_at
		 FROM service_operations
		 WHERE issue_id = $1
		 ORDER BY performed_at ASC, id ASC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list service operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.IssueID, &op.UnitID, &op.Type, &op.Notes, &op.PerformedBy, &op.PerformedAt); err != nil {
			return nil, fmt.Errorf("scan service operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
