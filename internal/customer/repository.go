package customer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the customer does not exist.
var ErrNotFound = errors.New("customer: not found")

// Repository persists customers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]Customer, int, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows pgx.Rows
		err  error
	)
	if search != "" {
		query := `SELECT id, name, email, phone, address, created_at, updated_at FROM customers
		          WHERE name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		          ORDER BY name LIMIT $2 OFFSET $3`
		rows, err = r.pool.Query(ctx, query, search, limit, offset)
	} else {
		query := `SELECT id, name, email, phone, address, created_at, updated_at FROM customers
		          ORDER BY name LIMIT $1 OFFSET $2`
		rows, err = r.pool.Query(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	query := `SELECT id, name, email, phone, address, created_at, updated_at FROM customers WHERE id = $1`
	var c Customer
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) Create(ctx context.Context, c Customer) (Customer, error) {
	query := `INSERT INTO customers (name, email, phone, address, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`
	now := time.Now()
	if err := r.pool.QueryRow(ctx, query, c.Name, c.Email, c.Phone, c.Address, now).Scan(&c.ID); err != nil {
		return Customer{}, err
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

func (r *Repository) Update(ctx context.Context, c Customer) error {
	query := `UPDATE customers SET name = $1, email = $2, phone = $3, address = $4, updated_at = $5 WHERE id = $6`
	tag, err := r.pool.Exec(ctx, query, c.Name, c.Email, c.Phone, c.Address, time.Now(), c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
