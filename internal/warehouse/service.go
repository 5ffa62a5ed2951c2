package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/notify"
	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
	"github.com/fixflow-erp/fixflow/internal/product"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLocationRef(ctx context.Context, id int64) (LocationRef, error)
	ListLocationRefs(ctx context.Context) ([]LocationRef, error)
	InsertCount(ctx context.Context, rec *CountRecord) error
	ListCounts(ctx context.Context, locationID int64, limit int) ([]CountRecord, error)
	EmptyLocations(ctx context.Context) ([]LocationRef, error)
	UnitsGroupedByStatus(ctx context.Context, statuses []string) ([]StatusGroup, error)
}

// LedgerPort is the append-only history ledger.
type LedgerPort interface {
	Append(ctx context.Context, q history.Querier, e history.Entry) (history.Entry, error)
}

// AuditPort abstracts the cross-cutting audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort observes completed unit moves.
type MetricsPort interface {
	ObserveMoves(count int)
}

// Service coordinates bulk relocation, capacity snapshots, counting sessions
// and stock alerts across locations.
type Service struct {
	repo    RepositoryPort
	ledger  LedgerPort
	cache   *Cache
	audit   AuditPort
	emitter notify.Emitter
	metrics MetricsPort
	logger  *slog.Logger
	alerts  singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger LedgerPort, cache *Cache, audit AuditPort,
	emitter notify.Emitter, metrics MetricsPort, logger *slog.Logger) *Service {
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}
	return &Service{
		repo: repo, ledger: ledger, cache: cache, audit: audit,
		emitter: emitter, metrics: metrics, logger: logger,
	}
}

// BulkMove relocates units to one target location. A missing target fails the
// whole batch; per-unit failures are collected without aborting the rest.
// Occupancy is recomputed from the units table, never incremented.
func (s *Service) BulkMove(ctx context.Context, req MoveRequest, actor shared.Actor) (MoveResult, error) {
	target, err := s.repo.GetLocationRef(ctx, req.TargetLocationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MoveResult{}, fmt.Errorf("%w: warehouse: unknown location %d", httpx.ErrNotFound, req.TargetLocationID)
		}
		return MoveResult{}, err
	}

	result := MoveResult{
		Moved:              []int64{},
		Failed:             []MoveFailure{},
		TargetLocationName: target.Name,
		Timestamp:          time.Now(),
	}
	if len(req.UnitIDs) == 0 {
		return result, nil
	}

	for _, unitID := range req.UnitIDs {
		if err := s.moveOne(ctx, unitID, target, req.Reason, actor); err != nil {
			result.Failed = append(result.Failed, MoveFailure{UnitID: unitID, Error: err.Error()})
			continue
		}
		result.Moved = append(result.Moved, unitID)
	}
	result.TotalMoved = len(result.Moved)
	result.TotalFailed = len(result.Failed)

	if result.TotalMoved > 0 {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("capacity cache bump failed", "error", err)
		}
		if s.metrics != nil {
			s.metrics.ObserveMoves(result.TotalMoved)
		}
		if s.audit != nil {
			_ = s.audit.Record(ctx, shared.AuditLog{
				ActorID:  actor.UserID,
				Action:   "warehouse:bulk_move",
				Entity:   "location",
				EntityID: fmt.Sprintf("%d", target.ID),
				Meta:     map[string]any{"moved": result.TotalMoved, "failed": result.TotalFailed},
			})
		}
		event := notify.NewEvent(notify.EventUnitsMoved)
		event.LocationID = target.ID
		event.Performer = actor.UserID
		event.Message = fmt.Sprintf("%d unit(s) moved to %s", result.TotalMoved, target.Name)
		s.emitter.Emit(event)

		if report, err := s.CheckCapacity(ctx, target.ID); err == nil && report.Status != CapacityOK {
			result.CapacityWarning = fmt.Sprintf("location %s at %.0f%% utilization (%s)",
				target.Name, report.UtilizationRate, report.Status)
		}
	}
	return result, nil
}

// moveOne runs one relocation in its own transaction so a single failure
// cannot poison the batch.
func (s *Service) moveOne(ctx context.Context, unitID int64, target LocationRef, reason string, actor shared.Actor) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		unit, err := tx.GetUnitForUpdate(ctx, unitID)
		if err != nil {
			return err
		}
		if err := tx.SetUnitLocation(ctx, unitID, target.ID, actor.UserID); err != nil {
			return err
		}

		description := "moved to " + target.Name
		if reason != "" {
			description += ": " + reason
		}
		locID := target.ID
		if _, err := s.ledger.Append(ctx, tx.Querier(), history.Entry{
			UnitID:      unitID,
			EventType:   history.EventLocationMove,
			Description: description,
			PerformerID: actor.UserID,
			LocationID:  &locID,
		}); err != nil {
			return err
		}

		if unit.LocationID != nil && *unit.LocationID != target.ID {
			if _, err := tx.RecountLocation(ctx, *unit.LocationID); err != nil {
				return err
			}
		}
		_, err = tx.RecountLocation(ctx, target.ID)
		return err
	})
}

// CheckCapacity is a pure read: it never mutates occupancy.
func (s *Service) CheckCapacity(ctx context.Context, locationID int64) (CapacityReport, error) {
	ref, err := s.repo.GetLocationRef(ctx, locationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CapacityReport{}, fmt.Errorf("%w: warehouse: unknown location %d", httpx.ErrNotFound, locationID)
		}
		return CapacityReport{}, err
	}
	return reportFor(ref), nil
}

// GetAllCapacities serves a short-lived cached snapshot of every location.
func (s *Service) GetAllCapacities(ctx context.Context) ([]CapacityReport, error) {
	key, err := s.cache.Key(ctx, "capacities")
	if err != nil {
		return nil, err
	}
	var reports []CapacityReport
	err = s.cache.FetchJSON(ctx, key, &reports, func(ctx context.Context) (interface{}, error) {
		refs, err := s.repo.ListLocationRefs(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]CapacityReport, 0, len(refs))
		for _, ref := range refs {
			out = append(out, reportFor(ref))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func reportFor(ref LocationRef) CapacityReport {
	report := CapacityReport{
		LocationID:   ref.ID,
		LocationName: ref.Name,
		Current:      ref.CurrentCount,
		Capacity:     ref.Capacity,
		Status:       CapacityOK,
	}
	if ref.Capacity != nil && *ref.Capacity > 0 {
		available := *ref.Capacity - ref.CurrentCount
		report.Available = &available
		report.UtilizationRate = float64(ref.CurrentCount) * 100 / float64(*ref.Capacity)
		report.Status = capacityStatusFor(report.UtilizationRate)
	}
	return report
}

// PerformInventoryCount records an immutable counting session. Variances are
// observational only: no unit or location state is corrected here.
func (s *Service) PerformInventoryCount(ctx context.Context, req CountRequest, actor shared.Actor) (CountRecord, error) {
	if _, err := s.repo.GetLocationRef(ctx, req.LocationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return CountRecord{}, fmt.Errorf("%w: warehouse: unknown location %d", httpx.ErrNotFound, req.LocationID)
		}
		return CountRecord{}, err
	}
	if len(req.Items) == 0 {
		return CountRecord{}, fmt.Errorf("%w: warehouse: count needs at least one item", httpx.ErrValidation)
	}

	rec := CountRecord{
		SessionID:   uuid.New(),
		LocationID:  req.LocationID,
		CounterID:   actor.UserID,
		Items:       make([]CountItem, 0, len(req.Items)),
		CompletedAt: time.Now(),
	}
	for _, in := range req.Items {
		rec.Items = append(rec.Items, CountItem{
			UnitID:   in.UnitID,
			Expected: in.Expected,
			Actual:   in.Actual,
			Variance: in.Actual - in.Expected,
			Notes:    in.Notes,
		})
	}
	if err := s.repo.InsertCount(ctx, &rec); err != nil {
		return CountRecord{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "warehouse:inventory_count",
			Entity:   "location",
			EntityID: fmt.Sprintf("%d", req.LocationID),
			Meta:     map[string]any{"session_id": rec.SessionID.String(), "items": len(rec.Items)},
		})
	}
	return rec, nil
}

// GetCountHistory lists past counting sessions for a location, newest first.
func (s *Service) GetCountHistory(ctx context.Context, locationID int64, limit int) ([]CountRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if _, err := s.repo.GetLocationRef(ctx, locationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: warehouse: unknown location %d", httpx.ErrNotFound, locationID)
		}
		return nil, err
	}
	return s.repo.ListCounts(ctx, locationID, limit)
}

// alertStatuses are the lifecycle states that warrant operator attention.
var (
	readyStatuses  = []string{string(product.StatusReadyForShipment)}
	defectStatuses = []string{
		string(product.StatusFirstProductionIssue),
		string(product.StatusIssueCreated),
		string(product.StatusReceived),
		string(product.StatusPreTestCompleted),
		string(product.StatusUnderRepair),
	}
)

// StockAlerts scans for empty locations, shippable stock and defect backlogs.
// Concurrent callers share one scan via singleflight.
func (s *Service) StockAlerts(ctx context.Context, actor shared.Actor) ([]Alert, error) {
	v, err, _ := s.alerts.Do("stock-alerts", func() (interface{}, error) {
		return s.scanAlerts(ctx, actor)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Alert), nil
}

func (s *Service) scanAlerts(ctx context.Context, actor shared.Actor) ([]Alert, error) {
	alerts := []Alert{}

	empty, err := s.repo.EmptyLocations(ctx)
	if err != nil {
		return nil, err
	}
	for _, loc := range empty {
		alerts = append(alerts, Alert{
			Type:            AlertEmptyLocation,
			Message:         fmt.Sprintf("location %s holds no units", loc.Name),
			Severity:        SeverityInfo,
			LocationID:      loc.ID,
			LocationName:    loc.Name,
			SuggestedAction: "consolidate stock or retire the location",
		})
	}
	if len(empty) > 0 {
		event := notify.NewEvent(notify.EventEmptyLocations)
		event.Performer = actor.UserID
		event.Message = fmt.Sprintf("%d location(s) are empty", len(empty))
		s.emitter.Emit(event)
	}

	ready, err := s.repo.UnitsGroupedByStatus(ctx, readyStatuses)
	if err != nil {
		return nil, err
	}
	for _, g := range ready {
		alerts = append(alerts, Alert{
			Type:            AlertReadyForShipment,
			Message:         fmt.Sprintf("%d unit(s) at %s are ready for shipment", g.Count, locationLabel(g)),
			Severity:        SeverityInfo,
			LocationID:      g.LocationID,
			LocationName:    g.LocationName,
			AffectedCount:   g.Count,
			SuggestedAction: "create a shipment",
		})
	}

	defects, err := s.repo.UnitsGroupedByStatus(ctx, defectStatuses)
	if err != nil {
		return nil, err
	}
	for _, g := range defects {
		severity := SeverityWarning
		if g.Count >= 10 {
			severity = SeverityError
		}
		alerts = append(alerts, Alert{
			Type:            AlertDefectiveStock,
			Message:         fmt.Sprintf("%d unit(s) at %s are in %s", g.Count, locationLabel(g), g.Status),
			Severity:        severity,
			LocationID:      g.LocationID,
			LocationName:    g.LocationName,
			AffectedCount:   g.Count,
			SuggestedAction: "review the service backlog",
		})
	}
	return alerts, nil
}

func locationLabel(g StatusGroup) string {
	if g.LocationName == "" {
		return "no location"
	}
	return g.LocationName
}
