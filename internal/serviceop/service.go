package serviceop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/issue"
	"github.com/fixflow-erp/fixflow/internal/product"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, op Operation) (Operation, error)
	ListForIssue(ctx context.Context, issueID int64) ([]Operation, error)
}

// IssuePort is the slice of the issue workflow the pipeline advances.
type IssuePort interface {
	Get(ctx context.Context, id int64) (issue.Issue, error)
	SetStatus(ctx context.Context, id int64, status issue.Status, actor shared.Actor) (issue.Issue, error)
}

// LifecyclePort drives unit status transitions.
type LifecyclePort interface {
	TransitionStatus(ctx context.Context, unitID int64, newStatus product.Status, extra product.TransitionExtra, actor shared.Actor) (product.Unit, error)
}

// LedgerPort is the append-only history ledger.
type LedgerPort interface {
	Append(ctx context.Context, q history.Querier, e history.Entry) (history.Entry, error)
}

// Service runs the repair pipeline: each step records an operation, moves the
// unit through its lifecycle and advances the owning issue.
type Service struct {
	repo      RepositoryPort
	issues    IssuePort
	lifecycle LifecyclePort
	ledger    LedgerPort
	q         history.Querier
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, issues IssuePort, lifecycle LifecyclePort,
	ledger LedgerPort, q history.Querier, logger *slog.Logger) *Service {
	return &Service{repo: repo, issues: issues, lifecycle: lifecycle, ledger: ledger, q: q, logger: logger}
}

// Receive books the faulty unit into the service area.
func (s *Service) Receive(ctx context.Context, issueID int64, req OpRequest, actor shared.Actor) (Operation, error) {
	return s.step(ctx, issueID, OpReceive, req.Notes, actor,
		[]product.Status{product.StatusReceived}, ptrStatus(issue.StatusInService))
}

// PreTest records diagnostic findings.
func (s *Service) PreTest(ctx context.Context, issueID int64, req OpRequest, actor shared.Actor) (Operation, error) {
	return s.step(ctx, issueID, OpPreTest, req.Notes, actor,
		[]product.Status{product.StatusPreTestCompleted}, nil)
}

// StartRepair moves the unit onto the bench.
func (s *Service) StartRepair(ctx context.Context, issueID int64, req OpRequest, actor shared.Actor) (Operation, error) {
	return s.step(ctx, issueID, OpRepairStart, req.Notes, actor,
		[]product.Status{product.StatusUnderRepair}, nil)
}

// CompleteRepair finishes the repair and returns the unit to sellable stock.
func (s *Service) CompleteRepair(ctx context.Context, issueID int64, req OpRequest, actor shared.Actor) (Operation, error) {
	return s.step(ctx, issueID, OpRepairComplete, req.Notes, actor,
		[]product.Status{product.StatusRepaired, product.StatusReadyForShipment},
		ptrStatus(issue.StatusResolved))
}

// Scrap writes the unit off as unrepairable.
func (s *Service) Scrap(ctx context.Context, issueID int64, req OpRequest, actor shared.Actor) (Operation, error) {
	return s.step(ctx, issueID, OpScrap, req.Notes, actor,
		[]product.Status{product.StatusServiceScrapped}, ptrStatus(issue.StatusClosed))
}

// ListForIssue returns the recorded steps for one issue, oldest first.
func (s *Service) ListForIssue(ctx context.Context, issueID int64) ([]Operation, error) {
	if _, err := s.issues.Get(ctx, issueID); err != nil {
		return nil, err
	}
	return s.repo.ListForIssue(ctx, issueID)
}

func (s *Service) step(ctx context.Context, issueID int64, opType OpType, notes string,
	actor shared.Actor, statuses []product.Status, issueStatus *issue.Status) (Operation, error) {
	is, err := s.issues.Get(ctx, issueID)
	if err != nil {
		return Operation{}, err
	}

	for _, status := range statuses {
		if _, err := s.lifecycle.TransitionStatus(ctx, is.UnitID, status,
			product.TransitionExtra{Note: notes}, actor); err != nil {
			return Operation{}, err
		}
	}

	op, err := s.repo.Insert(ctx, Operation{
		IssueID:     issueID,
		UnitID:      is.UnitID,
		Type:        opType,
		Notes:       notes,
		PerformedBy: actor.UserID,
		PerformedAt: time.Now(),
	})
	if err != nil {
		return Operation{}, err
	}

	opID := op.ID
	if _, err := s.ledger.Append(ctx, s.q, history.Entry{
		UnitID:      is.UnitID,
		EventType:   history.EventServiceOperation,
		Description: fmt.Sprintf("%s on issue #%d", opType, issueID),
		PerformerID: actor.UserID,
		IssueID:     &issueID,
		ServiceOpID: &opID,
	}); err != nil {
		return Operation{}, err
	}

	if issueStatus != nil {
		if _, err := s.issues.SetStatus(ctx, issueID, *issueStatus, actor); err != nil {
			return Operation{}, err
		}
	}
	return op, nil
}

func ptrStatus(s issue.Status) *issue.Status { return &s }
