package customer

import (
	"context"
	"fmt"
	"strings"

	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context, search string, limit, offset int) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, c Customer) error
}

// Service provides customer master data operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, search string, page, perPage int) ([]Customer, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	customers, total, err := s.repo.List(ctx, search, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return customers, shared.NewPagination(p.Page, p.PerPage, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, fmt.Errorf("%w: customer: invalid id %d", httpx.ErrValidation, id)
	}
	return s.repo.Get(ctx, id)
}

// Exists reports whether the id references a known customer.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	return s.repo.Exists(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: customer: name is required", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, Customer{
		Name:    name,
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: req.Address,
	})
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (Customer, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		current.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		current.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		current.Address = *req.Address
	}
	if current.Name == "" {
		return Customer{}, fmt.Errorf("%w: customer: name is required", httpx.ErrValidation)
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return Customer{}, err
	}
	return current, nil
}
