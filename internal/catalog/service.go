package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context) ([]Model, error)
	Get(ctx context.Context, id int64) (Model, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, m Model) (Model, error)
	Update(ctx context.Context, m Model) error
}

// Service provides model master data operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Model, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Model, error) {
	if id <= 0 {
		return Model{}, fmt.Errorf("%w: catalog: invalid model id %d", httpx.ErrValidation, id)
	}
	return s.repo.Get(ctx, id)
}

// Exists reports whether the model id references a known model. The lifecycle
// engine calls this before intake.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	return s.repo.Exists(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateModelRequest) (Model, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return Model{}, fmt.Errorf("%w: catalog: code and name are required", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, Model{
		Code:           code,
		Name:           name,
		Description:    req.Description,
		WarrantyMonths: req.WarrantyMonths,
	})
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateModelRequest) (Model, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Model{}, err
	}
	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		current.Description = *req.Description
	}
	if req.WarrantyMonths != nil {
		current.WarrantyMonths = *req.WarrantyMonths
	}
	if current.Name == "" {
		return Model{}, fmt.Errorf("%w: catalog: name is required", httpx.ErrValidation)
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return Model{}, err
	}
	return current, nil
}
