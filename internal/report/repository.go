package report

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

func (r *Repository) UnitsByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM units GROUP BY status ORDER BY COUNT(*) DESC, status ASC`)
	if err != nil {
		return nil, fmt.Errorf("units by status: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts = append(counts, sc)
	}
	return counts, rows.Err()
}

// WarrantyCounts splits warranted units into live and expired, computed at
// query time so the split is never stale.
func (r *Repository) WarrantyCounts(ctx context.Context) (inWarranty, expired int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE warranty_start + make_interval(months => warranty_months) > now()),
		   COUNT(*) FILTER (WHERE warranty_start + make_interval(months => warranty_months) <= now())
		 FROM units
		 WHERE warranty_start IS NOT NULL AND warranty_months IS NOT NULL`,
	).Scan(&inWarranty, &expired)
	if err != nil {
		return 0, 0, fmt.Errorf("warranty counts: %w", err)
	}
	return inWarranty, expired, nil
}

func (r *Repository) OpenIssues(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM issues WHERE status IN ('OPEN', 'IN_SERVICE')`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("open issues: %w", err)
	}
	return count, nil
}

func (r *Repository) LocationUtilization(ctx context.Context) ([]LocationUtilization, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, current_count, capacity FROM locations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("location utilization: %w", err)
	}
	defer rows.Close()

	var out []LocationUtilization
	for rows.Next() {
		var lu LocationUtilization
		if err := rows.Scan(&lu.LocationID, &lu.Name, &lu.Current, &lu.Capacity); err != nil {
			return nil, fmt.Errorf("scan location utilization: %w", err)
		}
		if lu.Capacity != nil && *lu.Capacity > 0 {
			lu.UtilizationRate = float64(lu.Current) * 100 / float64(*lu.Capacity)
		}
		out = append(out, lu)
	}
	return out, rows.Err()
}
