package location

import (
	"context"
	"fmt"
	"strings"

	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context) ([]Location, error)
	Get(ctx context.Context, id int64) (Location, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, l Location) (Location, error)
	Update(ctx context.Context, l Location) error
	RecomputeCurrentCount(ctx context.Context, id int64) (int, error)
}

// Service provides location registry operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Location, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("%w: location: invalid id %d", httpx.ErrValidation, id)
	}
	return s.repo.Get(ctx, id)
}

// Exists reports whether the id references a known location.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	return s.repo.Exists(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateLocationRequest) (Location, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Location{}, fmt.Errorf("%w: location: name is required", httpx.ErrValidation)
	}
	if !req.Type.IsValid() {
		return Location{}, fmt.Errorf("%w: location: unknown type %q", httpx.ErrValidation, req.Type)
	}
	return s.repo.Create(ctx, Location{
		Name:     name,
		Type:     req.Type,
		Address:  req.Address,
		Notes:    req.Notes,
		Capacity: req.Capacity,
	})
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateLocationRequest) (Location, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Location{}, err
	}
	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		if !req.Type.IsValid() {
			return Location{}, fmt.Errorf("%w: location: unknown type %q", httpx.ErrValidation, *req.Type)
		}
		current.Type = *req.Type
	}
	if req.Address != nil {
		current.Address = *req.Address
	}
	if req.Notes != nil {
		current.Notes = *req.Notes
	}
	if req.Capacity != nil {
		if *req.Capacity == 0 {
			current.Capacity = nil
		} else {
			current.Capacity = req.Capacity
		}
	}
	if current.Name == "" {
		return Location{}, fmt.Errorf("%w: location: name is required", httpx.ErrValidation)
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return Location{}, err
	}
	return current, nil
}

// RecomputeCurrentCount refreshes the persisted occupancy for one location and
// returns the authoritative count.
func (s *Service) RecomputeCurrentCount(ctx context.Context, id int64) (int, error) {
	if id <= 0 {
		return 0, fmt.Errorf("%w: location: invalid id %d", httpx.ErrValidation, id)
	}
	return s.repo.RecomputeCurrentCount(ctx, id)
}
