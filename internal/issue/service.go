package issue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/notify"
	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
	"github.com/fixflow-erp/fixflow/internal/product"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, is Issue) (Issue, error)
	Get(ctx context.Context, id int64) (Issue, error)
	Update(ctx context.Context, is Issue) (Issue, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]Issue, int, error)
}

// LifecyclePort is the slice of the unit lifecycle the issue flow drives.
type LifecyclePort interface {
	Get(ctx context.Context, id int64) (product.Unit, error)
	TransitionStatus(ctx context.Context, unitID int64, newStatus product.Status, extra product.TransitionExtra, actor shared.Actor) (product.Unit, error)
}

// LedgerPort is the append-only history ledger.
type LedgerPort interface {
	Append(ctx context.Context, q history.Querier, e history.Entry) (history.Entry, error)
}

// Service owns fault reports and their link into the unit lifecycle.
type Service struct {
	repo      RepositoryPort
	lifecycle LifecyclePort
	ledger    LedgerPort
	q         history.Querier
	emitter   notify.Emitter
	logger    *slog.Logger
}

// NewService builds Service. q is the ledger's write handle outside unit
// transactions; memory tests pass nil.
func NewService(repo RepositoryPort, lifecycle LifecyclePort, ledger LedgerPort,
	q history.Querier, emitter notify.Emitter, logger *slog.Logger) *Service {
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}
	return &Service{repo: repo, lifecycle: lifecycle, ledger: ledger, q: q, emitter: emitter, logger: logger}
}

// Open files an issue. A DELIVERED unit re-enters the service cycle via
// ISSUE_CREATED; units already inside the cycle keep their status.
func (s *Service) Open(ctx context.Context, req CreateRequest, actor shared.Actor) (Issue, error) {
	unit, err := s.lifecycle.Get(ctx, req.UnitID)
	if err != nil {
		return Issue{}, err
	}
	if unit.Status.IsTerminal() {
		return Issue{}, fmt.Errorf("%w: issue: unit %d is %s", httpx.ErrConflict, unit.ID, unit.Status)
	}

	// The transition runs before the insert so a refused transition
	// leaves no issue row behind.
	if unit.Status == product.StatusDelivered {
		if _, err := s.lifecycle.TransitionStatus(ctx, unit.ID, product.StatusIssueCreated,
			product.TransitionExtra{Note: "issue opened: " + req.Title}, actor); err != nil {
			return Issue{}, err
		}
	}

	is, err := s.repo.Create(ctx, Issue{
		UnitID:      req.UnitID,
		CustomerID:  req.CustomerID,
		Title:       req.Title,
		Description: req.Description,
		Status:      StatusOpen,
		OpenedBy:    actor.UserID,
	})
	if err != nil {
		return Issue{}, err
	}

	issueID := is.ID
	if _, err := s.ledger.Append(ctx, s.q, history.Entry{
		UnitID:      unit.ID,
		EventType:   history.EventIssueOpened,
		Description: is.Title,
		PerformerID: actor.UserID,
		IssueID:     &issueID,
	}); err != nil {
		s.logger.Warn("issue history append failed", "unit_id", unit.ID, "issue_id", is.ID, "error", err)
	}

	event := notify.NewEvent(notify.EventIssueOpened)
	event.UnitID = unit.ID
	event.Performer = actor.UserID
	event.Message = is.Title
	s.emitter.Emit(event)
	return is, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Issue, error) {
	is, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Issue{}, fmt.Errorf("%w: issue %d", httpx.ErrNotFound, id)
	}
	return is, err
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Issue, shared.Pagination, error) {
	p := shared.NewPagination(filter.Page, filter.PerPage, 0)
	issues, total, err := s.repo.List(ctx, filter, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return issues, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Update edits title and description on a not-yet-closed issue.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest, actor shared.Actor) (Issue, error) {
	is, err := s.Get(ctx, id)
	if err != nil {
		return Issue{}, err
	}
	if is.Status == StatusClosed {
		return Issue{}, fmt.Errorf("%w: issue %d is closed", httpx.ErrConflict, id)
	}
	if req.Title != nil {
		if *req.Title == "" {
			return Issue{}, fmt.Errorf("%w: issue: title cannot be empty", httpx.ErrValidation)
		}
		is.Title = *req.Title
	}
	if req.Description != nil {
		is.Description = *req.Description
	}
	return s.repo.Update(ctx, is)
}

// SetStatus moves the issue workflow forward. The service-operation flow
// calls this as units progress through the repair pipeline.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status, actor shared.Actor) (Issue, error) {
	if !status.IsValid() {
		return Issue{}, fmt.Errorf("%w: issue: unknown status %q", httpx.ErrValidation, status)
	}
	is, err := s.Get(ctx, id)
	if err != nil {
		return Issue{}, err
	}
	if is.Status == StatusClosed {
		return Issue{}, fmt.Errorf("%w: issue %d is closed", httpx.ErrConflict, id)
	}
	is.Status = status
	if status == StatusResolved || status == StatusClosed {
		now := time.Now()
		is.ResolvedAt = &now
	}
	return s.repo.Update(ctx, is)
}

// Resolve marks the issue resolved.
func (s *Service) Resolve(ctx context.Context, id int64, actor shared.Actor) (Issue, error) {
	return s.SetStatus(ctx, id, StatusResolved, actor)
}

// Close ends the issue without further service work.
func (s *Service) Close(ctx context.Context, id int64, actor shared.Actor) (Issue, error) {
	return s.SetStatus(ctx, id, StatusClosed, actor)
}
