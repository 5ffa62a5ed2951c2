package issue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("issue: not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const issueColumns = `id, unit_id, customer_id, title, description, status, opened_by, resolved_at, created_at, updated_at`

func scanIssue(row pgx.Row) (Issue, error) {
	var is Issue
	err := row.Scan(&is.ID, &is.UnitID, &is.CustomerID, &is.Title, &is.Description,
		&is.Status, &is.OpenedBy, &is.ResolvedAt, &is.CreatedAt, &is.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Issue{}, ErrNotFound
	}
	if err != nil {
		return Issue{}, fmt.Errorf("scan issue: %w", err)
	}
	return is, nil
}

func (r *Repository) Create(ctx context.Context, is Issue) (Issue, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO issues (unit_id, customer_id, title, description, status, opened_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+issueColumns,
		is.UnitID, is.CustomerID, is.Title, is.Description, is.Status, is.OpenedBy)
	return scanIssue(row)
}

func (r *Repository) Get(ctx context.Context, id int64) (Issue, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id)
	return scanIssue(row)
}

func (r *Repository) Update(ctx context.Context, is Issue) (Issue, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE issues
		 SET title = $2, description = $3, status = $4, resolved_at = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+issueColumns,
		is.ID, is.Title, is.Description, is.Status, is.ResolvedAt)
	return scanIssue(row)
}

func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Issue, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	idx := 1
	if filter.Status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, *filter.Status)
		idx++
	}
	if filter.UnitID != nil {
		conds = append(conds, fmt.Sprintf("unit_id = $%d", idx))
		args = append(args, *filter.UnitID)
		idx++
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM issues WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM issues WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		issueColumns, where, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []Issue
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, 0, err
		}
		issues = append(issues, is)
	}
	return issues, total, rows.Err()
}
