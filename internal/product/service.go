package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/notify"
	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

// ErrInvalidTransition indicates the requested status change is not in the
// lifecycle graph.
var ErrInvalidTransition = errors.New("product: invalid status transition")

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Unit, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]Unit, int, error)
}

// LedgerPort is the append-only history ledger.
type LedgerPort interface {
	Append(ctx context.Context, q history.Querier, e history.Entry) (history.Entry, error)
	AppendMany(ctx context.Context, q history.Querier, entries []history.Entry) error
	ListFor(ctx context.Context, unitID int64) ([]history.Entry, error)
}

// RefPort checks existence of a referenced entity (model, location, customer).
type RefPort interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// AuditPort abstracts the cross-cutting audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort observes successful transitions.
type MetricsPort interface {
	ObserveTransition(status string)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// AllowFreeformTransitions skips the lifecycle graph check, restoring the
	// legacy behavior where operators can write any status for manual
	// correction.
	AllowFreeformTransitions bool
}

// Service owns the per-unit lifecycle: intake, status transitions, serial
// assignment, warranty, ownership transfer.
type Service struct {
	repo        RepositoryPort
	ledger      LedgerPort
	models      RefPort
	locations   RefPort
	customers   RefPort
	audit       AuditPort
	emitter     notify.Emitter
	metrics     MetricsPort
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
	cfg         ServiceConfig
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger LedgerPort, models, locations, customers RefPort,
	audit AuditPort, emitter notify.Emitter, metrics MetricsPort,
	idem *shared.IdempotencyStore, logger *slog.Logger, cfg ServiceConfig) *Service {
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}
	return &Service{
		repo: repo, ledger: ledger, models: models, locations: locations,
		customers: customers, audit: audit, emitter: emitter, metrics: metrics,
		idempotency: idem, logger: logger, cfg: cfg,
	}
}

// Intake creates quantity units at FIRST_PRODUCTION and records one ledger
// entry per unit. No customer-facing notification is emitted.
func (s *Service) Intake(ctx context.Context, req IntakeRequest, actor shared.Actor) ([]Unit, error) {
	units, err := s.intakeBatches(ctx, req.ModelID, []IntakeBatch{{
		Quantity:       req.Quantity,
		ProductionDate: req.ProductionDate,
		LocationID:     req.LocationID,
	}}, actor)
	if err != nil {
		return nil, err
	}
	return units, nil
}

// BulkIntake creates heterogeneous batches (different dates/locations) in one
// call with the same history semantics. An optional idempotency key protects
// retried requests from duplicating the batch.
func (s *Service) BulkIntake(ctx context.Context, req BulkIntakeRequest, idemKey string, actor shared.Actor) ([]Unit, error) {
	insertedKey := false
	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "product_intake"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, fmt.Errorf("%w: %s", httpx.ErrConflict, err)
			}
			return nil, err
		}
		insertedKey = true
	}
	units, err := s.intakeBatches(ctx, req.ModelID, req.Batches, actor)
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return nil, err
	}
	return units, nil
}

func (s *Service) intakeBatches(ctx context.Context, modelID int64, batches []IntakeBatch, actor shared.Actor) ([]Unit, error) {
	if modelID <= 0 {
		return nil, fmt.Errorf("%w: product: model id required", httpx.ErrValidation)
	}
	known, err := s.models.Exists(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, fmt.Errorf("%w: product: unknown model %d", httpx.ErrValidation, modelID)
	}

	var toInsert []Unit
	locations := map[int64]struct{}{}
	for _, b := range batches {
		if b.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product: quantity must be positive", httpx.ErrValidation)
		}
		if b.LocationID != nil {
			ok, err := s.locations.Exists(ctx, *b.LocationID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: product: unknown location %d", httpx.ErrValidation, *b.LocationID)
			}
			locations[*b.LocationID] = struct{}{}
		}
		for i := 0; i < b.Quantity; i++ {
			toInsert = append(toInsert, Unit{
				ModelID:        modelID,
				Status:         StatusFirstProduction,
				LocationID:     b.LocationID,
				ProductionDate: b.ProductionDate,
				CreatedBy:      actor.UserID,
			})
		}
	}

	var created []Unit
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertUnits(ctx, toInsert)
		if err != nil {
			return err
		}
		entries := make([]history.Entry, 0, len(created))
		for _, u := range created {
			entries = append(entries, history.Entry{
				UnitID:      u.ID,
				EventType:   history.EventProductionIntake,
				Description: "production intake",
				PerformerID: actor.UserID,
				LocationID:  u.LocationID,
			})
		}
		if err := s.ledger.AppendMany(ctx, tx.Querier(), entries); err != nil {
			return err
		}
		for loc := range locations {
			if _, err := tx.RecountLocation(ctx, loc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "product:intake",
			Entity:   "unit",
			EntityID: fmt.Sprintf("model:%d", modelID),
			Meta:     map[string]any{"quantity": len(created)},
		})
	}
	return s.withWarranty(created), nil
}

// TransitionStatus applies one status change with partial-update extras. The
// whole read-mutate-write-history sequence runs in a single transaction; the
// notification is emitted only after commit and never rolls it back.
func (s *Service) TransitionStatus(ctx context.Context, unitID int64, newStatus Status, extra TransitionExtra, actor shared.Actor) (Unit, error) {
	if !newStatus.IsValid() {
		return Unit{}, fmt.Errorf("%w: product: unknown status %q", httpx.ErrValidation, newStatus)
	}
	if (extra.WarrantyStart == nil) != (extra.WarrantyMonths == nil) {
		return Unit{}, fmt.Errorf("%w: product: warranty start and period must be set together", httpx.ErrValidation)
	}
	if extra.LocationID != nil {
		ok, err := s.locations.Exists(ctx, *extra.LocationID)
		if err != nil {
			return Unit{}, err
		}
		if !ok {
			return Unit{}, fmt.Errorf("%w: product: unknown location %d", httpx.ErrValidation, *extra.LocationID)
		}
	}
	if extra.OwnerID != nil {
		ok, err := s.customers.Exists(ctx, *extra.OwnerID)
		if err != nil {
			return Unit{}, err
		}
		if !ok {
			return Unit{}, fmt.Errorf("%w: product: unknown customer %d", httpx.ErrValidation, *extra.OwnerID)
		}
	}

	var (
		updated   Unit
		oldStatus Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		unit, err := tx.GetUnitForUpdate(ctx, unitID)
		if err != nil {
			return err
		}
		oldStatus = unit.Status

		if !s.cfg.AllowFreeformTransitions && !oldStatus.CanTransition(newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldStatus, newStatus)
		}

		serialAssigned := false
		if extra.SerialNumber != nil {
			serial := *extra.SerialNumber
			if serial == "" {
				return fmt.Errorf("%w: product: serial number cannot be empty", httpx.ErrValidation)
			}
			switch {
			case unit.SerialNumber != nil && *unit.SerialNumber == serial:
				// already assigned, nothing to do
			case unit.SerialNumber != nil:
				return fmt.Errorf("%w: unit %d already has serial %s", httpx.ErrConflict, unit.ID, *unit.SerialNumber)
			default:
				taken, err := tx.SerialExists(ctx, serial, unit.ID)
				if err != nil {
					return err
				}
				if taken {
					return ErrSerialTaken
				}
				unit.SerialNumber = &serial
				serialAssigned = true
			}
		}
		if extra.HardwareVerifiedBy != nil {
			unit.HardwareVerifiedBy = extra.HardwareVerifiedBy
		}
		if extra.HardwareVerifiedAt != nil {
			unit.HardwareVerifiedAt = extra.HardwareVerifiedAt
		}
		if extra.WarrantyStart != nil {
			unit.WarrantyStart = extra.WarrantyStart
			unit.WarrantyMonths = extra.WarrantyMonths
		}
		oldLocation := unit.LocationID
		if extra.LocationID != nil {
			unit.LocationID = extra.LocationID
		}
		if extra.OwnerID != nil {
			unit.OwnerID = extra.OwnerID
		}
		if extra.SoldAt != nil {
			unit.SoldAt = extra.SoldAt
		}
		// Ownership transfer: a sold unit is never warehoused.
		if unit.OwnerID != nil && (newStatus == StatusDelivered || extra.OwnerID != nil) {
			unit.LocationID = nil
		}

		unit.Status = newStatus
		unit.UpdatedBy = actor.UserID
		if err := tx.UpdateUnit(ctx, unit); err != nil {
			return err
		}

		description := fmt.Sprintf("%s -> %s", oldStatus, newStatus)
		if serialAssigned {
			description += fmt.Sprintf(" (serial %s)", *unit.SerialNumber)
		}
		if extra.Note != "" {
			description += ": " + extra.Note
		}
		if _, err := s.ledger.Append(ctx, tx.Querier(), history.Entry{
			UnitID:      unit.ID,
			EventType:   history.EventStatusChange,
			Description: description,
			PerformerID: actor.UserID,
			LocationID:  unit.LocationID,
		}); err != nil {
			return err
		}

		if err := s.recountChanged(ctx, tx, oldLocation, unit.LocationID); err != nil {
			return err
		}
		updated = unit
		return nil
	})
	if err != nil {
		return Unit{}, err
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(newStatus))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "product:transition",
			Entity:   "unit",
			EntityID: fmt.Sprintf("%d", unitID),
			Meta:     map[string]any{"old_status": string(oldStatus), "new_status": string(newStatus)},
		})
	}
	event := notify.NewEvent(notify.EventStatusChanged)
	event.UnitID = updated.ID
	event.OldStatus = string(oldStatus)
	event.NewStatus = string(newStatus)
	event.Performer = actor.UserID
	s.emitter.Emit(event)

	updated.WarrantyStatus = updated.WarrantyStatusAt(time.Now())
	return updated, nil
}

// recountChanged refreshes persisted occupancy for locations touched by a
// location change. Recompute-from-source, never increment.
func (s *Service) recountChanged(ctx context.Context, tx TxRepository, oldLoc, newLoc *int64) error {
	touched := map[int64]struct{}{}
	if oldLoc != nil {
		touched[*oldLoc] = struct{}{}
	}
	if newLoc != nil {
		touched[*newLoc] = struct{}{}
	}
	for loc := range touched {
		if _, err := tx.RecountLocation(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}

// BulkTransitionStatus applies the transition per unit in input order.
// Per-unit failures are collected, not aborting the batch. A serial prefix
// assigns prefix + zero-padded index per unit in array order.
func (s *Service) BulkTransitionStatus(ctx context.Context, req BulkTransitionRequest, actor shared.Actor) (BulkTransitionResult, error) {
	if !req.NewStatus.IsValid() {
		return BulkTransitionResult{}, fmt.Errorf("%w: product: unknown status %q", httpx.ErrValidation, req.NewStatus)
	}
	result := BulkTransitionResult{Updated: []Unit{}, Failed: []UnitError{}}
	for i, unitID := range req.UnitIDs {
		extra := req.Extra
		if req.SerialPrefix != "" {
			serial := fmt.Sprintf("%s%04d", req.SerialPrefix, i+1)
			extra.SerialNumber = &serial
		}
		unit, err := s.TransitionStatus(ctx, unitID, req.NewStatus, extra, actor)
		if err != nil {
			result.Failed = append(result.Failed, UnitError{UnitID: unitID, Error: err.Error()})
			continue
		}
		result.Updated = append(result.Updated, unit)
	}
	return result, nil
}

// GetHistory returns the unit's ledger entries, newest first.
func (s *Service) GetHistory(ctx context.Context, unitID int64) ([]history.Entry, error) {
	if _, err := s.repo.Get(ctx, unitID); err != nil {
		return nil, err
	}
	return s.ledger.ListFor(ctx, unitID)
}

// Get loads one unit with a warranty snapshot.
func (s *Service) Get(ctx context.Context, id int64) (Unit, error) {
	unit, err := s.repo.Get(ctx, id)
	if err != nil {
		return Unit{}, err
	}
	unit.WarrantyStatus = unit.WarrantyStatusAt(time.Now())
	return unit, nil
}

// List returns units matching the filter with warranty snapshots.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Unit, shared.Pagination, error) {
	p := shared.NewPagination(filter.Page, filter.PerPage, 0)
	units, total, err := s.repo.List(ctx, filter, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return s.withWarranty(units), shared.NewPagination(p.Page, p.PerPage, total), nil
}

// HardDelete removes a unit row entirely. This is an administrative escape
// hatch outside the lifecycle state machine; lifecycle callers scrap instead.
func (s *Service) HardDelete(ctx context.Context, id int64, actor shared.Actor) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: product: hard delete requires admin role", httpx.ErrForbidden)
	}
	var location *int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		unit, err := tx.GetUnitForUpdate(ctx, id)
		if err != nil {
			return err
		}
		location = unit.LocationID
		if err := tx.DeleteUnit(ctx, id); err != nil {
			return err
		}
		if location != nil {
			if _, err := tx.RecountLocation(ctx, *location); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "product:hard_delete",
			Entity:   "unit",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

func (s *Service) withWarranty(units []Unit) []Unit {
	now := time.Now()
	for i := range units {
		units[i].WarrantyStatus = units[i].WarrantyStatusAt(now)
	}
	return units
}
