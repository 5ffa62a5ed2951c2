package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the model does not exist.
var ErrNotFound = errors.New("catalog: model not found")

// ErrDuplicateCode indicates the model code is already taken.
var ErrDuplicateCode = errors.New("catalog: model code already exists")

// Repository persists models in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context) ([]Model, error) {
	query := `SELECT id, code, name, description, warranty_months, created_at, updated_at FROM models ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.WarrantyMonths, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (Model, error) {
	query := `SELECT id, code, name, description, warranty_months, created_at, updated_at FROM models WHERE id = $1`
	var m Model
	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.WarrantyMonths, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Model{}, ErrNotFound
	}
	return m, err
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM models WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) Create(ctx context.Context, m Model) (Model, error) {
	query := `INSERT INTO models (code, name, description, warranty_months, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`
	now := time.Now()
	err := r.pool.QueryRow(ctx, query, m.Code, m.Name, m.Description, m.WarrantyMonths, now).Scan(&m.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Model{}, ErrDuplicateCode
		}
		return Model{}, err
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	return m, nil
}

func (r *Repository) Update(ctx context.Context, m Model) error {
	query := `UPDATE models SET name = $1, description = $2, warranty_months = $3, updated_at = $4 WHERE id = $5`
	tag, err := r.pool.Exec(ctx, query, m.Name, m.Description, m.WarrantyMonths, time.Now(), m.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
