package shipment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fixflow-erp/fixflow/internal/catalog"
	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/notify"
	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
	"github.com/fixflow-erp/fixflow/internal/product"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, sh Shipment) (Shipment, error)
	Get(ctx context.Context, id int64) (Shipment, error)
	UpdateStatus(ctx context.Context, sh Shipment) (Shipment, error)
	List(ctx context.Context, status *Status, limit, offset int) ([]Shipment, int, error)
}

// LifecyclePort drives unit status transitions.
type LifecyclePort interface {
	Get(ctx context.Context, id int64) (product.Unit, error)
	TransitionStatus(ctx context.Context, unitID int64, newStatus product.Status, extra product.TransitionExtra, actor shared.Actor) (product.Unit, error)
}

// CatalogPort resolves model metadata for warranty defaults.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (catalog.Model, error)
}

// RefPort checks existence of a referenced customer.
type RefPort interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// LedgerPort is the append-only history ledger.
type LedgerPort interface {
	Append(ctx context.Context, q history.Querier, e history.Entry) (history.Entry, error)
}

// Service assembles shipments and walks their units through SHIPPED and
// DELIVERED, including the point-of-sale side effects on delivery.
type Service struct {
	repo      RepositoryPort
	lifecycle LifecyclePort
	models    CatalogPort
	customers RefPort
	ledger    LedgerPort
	q         history.Querier
	emitter   notify.Emitter
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, lifecycle LifecyclePort, models CatalogPort,
	customers RefPort, ledger LedgerPort, q history.Querier,
	emitter notify.Emitter, logger *slog.Logger) *Service {
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}
	return &Service{
		repo: repo, lifecycle: lifecycle, models: models, customers: customers,
		ledger: ledger, q: q, emitter: emitter, logger: logger,
	}
}

// Create assembles a draft shipment. Every unit must exist and be ready for
// shipment before the draft is accepted.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor shared.Actor) (Shipment, error) {
	ok, err := s.customers.Exists(ctx, req.CustomerID)
	if err != nil {
		return Shipment{}, err
	}
	if !ok {
		return Shipment{}, fmt.Errorf("%w: shipment: unknown customer %d", httpx.ErrValidation, req.CustomerID)
	}
	for _, unitID := range req.UnitIDs {
		unit, err := s.lifecycle.Get(ctx, unitID)
		if err != nil {
			return Shipment{}, err
		}
		if unit.Status != product.StatusReadyForShipment {
			return Shipment{}, fmt.Errorf("%w: shipment: unit %d is %s, not %s",
				httpx.ErrValidation, unitID, unit.Status, product.StatusReadyForShipment)
		}
	}

	return s.repo.Create(ctx, Shipment{
		Code:           newCode(),
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		Status:         StatusDraft,
		CustomerID:     req.CustomerID,
		UnitIDs:        req.UnitIDs,
		CreatedBy:      actor.UserID,
	})
}

// Dispatch marks the shipment in transit and moves its units to SHIPPED.
// Unit failures are collected fail-soft; the shipment dispatches as long as
// at least one unit made it out.
func (s *Service) Dispatch(ctx context.Context, id int64, actor shared.Actor) (BatchResult, error) {
	sh, err := s.get(ctx, id)
	if err != nil {
		return BatchResult{}, err
	}
	if sh.Status != StatusDraft {
		return BatchResult{}, fmt.Errorf("%w: shipment %d is %s", httpx.ErrConflict, id, sh.Status)
	}

	result := BatchResult{Succeeded: []int64{}, Failed: []UnitFailure{}}
	for _, unitID := range sh.UnitIDs {
		if _, err := s.lifecycle.TransitionStatus(ctx, unitID, product.StatusShipped,
			product.TransitionExtra{Note: "shipment " + sh.Code}, actor); err != nil {
			result.Failed = append(result.Failed, UnitFailure{UnitID: unitID, Error: err.Error()})
			continue
		}
		shipmentID := sh.ID
		if _, err := s.ledger.Append(ctx, s.q, history.Entry{
			UnitID:      unitID,
			EventType:   history.EventShipment,
			Description: "dispatched in " + sh.Code,
			PerformerID: actor.UserID,
			ShipmentID:  &shipmentID,
		}); err != nil {
			s.logger.Warn("shipment history append failed", "unit_id", unitID, "error", err)
		}
		result.Succeeded = append(result.Succeeded, unitID)
	}
	if len(result.Succeeded) == 0 {
		return BatchResult{}, fmt.Errorf("%w: shipment %d: no unit could be dispatched", httpx.ErrConflict, id)
	}

	now := time.Now()
	sh.Status = StatusDispatched
	sh.DispatchedAt = &now
	sh, err = s.repo.UpdateStatus(ctx, sh)
	if err != nil {
		return BatchResult{}, err
	}
	result.Shipment = sh

	event := notify.NewEvent(notify.EventShipmentUpdate)
	event.Performer = actor.UserID
	event.NewStatus = string(StatusDispatched)
	event.Message = fmt.Sprintf("shipment %s dispatched with %d unit(s)", sh.Code, len(result.Succeeded))
	s.emitter.Emit(event)
	return result, nil
}

// Deliver hands the units over: DELIVERED status, owner set, sold date
// stamped, warranty started today with the model default period. The
// lifecycle engine clears the location on ownership transfer.
func (s *Service) Deliver(ctx context.Context, id int64, actor shared.Actor) (BatchResult, error) {
	sh, err := s.get(ctx, id)
	if err != nil {
		return BatchResult{}, err
	}
	if sh.Status != StatusDispatched {
		return BatchResult{}, fmt.Errorf("%w: shipment %d is %s", httpx.ErrConflict, id, sh.Status)
	}

	now := time.Now()
	today := now.Truncate(24 * time.Hour)
	result := BatchResult{Succeeded: []int64{}, Failed: []UnitFailure{}}
	for _, unitID := range sh.UnitIDs {
		unit, err := s.lifecycle.Get(ctx, unitID)
		if err != nil {
			result.Failed = append(result.Failed, UnitFailure{UnitID: unitID, Error: err.Error()})
			continue
		}
		// Warranty terms are fixed at the point of sale, so a failed
		// catalog lookup fails the unit instead of delivering it bare.
		model, err := s.models.Get(ctx, unit.ModelID)
		if err != nil {
			result.Failed = append(result.Failed, UnitFailure{UnitID: unitID, Error: err.Error()})
			continue
		}
		months := model.WarrantyMonths
		owner := sh.CustomerID
		soldAt := now
		start := today
		extra := product.TransitionExtra{
			OwnerID: &owner,
			SoldAt:  &soldAt,
			Note:    "delivered via " + sh.Code,
		}
		if months > 0 {
			extra.WarrantyStart = &start
			extra.WarrantyMonths = &months
		}
		if _, err := s.lifecycle.TransitionStatus(ctx, unitID, product.StatusDelivered, extra, actor); err != nil {
			result.Failed = append(result.Failed, UnitFailure{UnitID: unitID, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, unitID)
	}
	if len(result.Succeeded) == 0 {
		return BatchResult{}, fmt.Errorf("%w: shipment %d: no unit could be delivered", httpx.ErrConflict, id)
	}

	sh.Status = StatusDelivered
	sh.DeliveredAt = &now
	sh, err = s.repo.UpdateStatus(ctx, sh)
	if err != nil {
		return BatchResult{}, err
	}
	result.Shipment = sh

	event := notify.NewEvent(notify.EventShipmentUpdate)
	event.Performer = actor.UserID
	event.NewStatus = string(StatusDelivered)
	event.Message = fmt.Sprintf("shipment %s delivered to customer %d", sh.Code, sh.CustomerID)
	s.emitter.Emit(event)
	return result, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Shipment, error) {
	return s.get(ctx, id)
}

func (s *Service) List(ctx context.Context, status *Status, page, perPage int) ([]Shipment, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	shipments, total, err := s.repo.List(ctx, status, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return shipments, shared.NewPagination(p.Page, p.PerPage, total), nil
}

func (s *Service) get(ctx context.Context, id int64) (Shipment, error) {
	sh, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Shipment{}, fmt.Errorf("%w: shipment %d", httpx.ErrNotFound, id)
	}
	return sh, err
}

func newCode() string {
	return "SHP-" + strings.ToUpper(uuid.NewString()[:8])
}
