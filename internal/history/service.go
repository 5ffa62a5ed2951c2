package history

import (
	"context"
	"fmt"

	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Append(ctx context.Context, q Querier, e Entry) (Entry, error)
	AppendMany(ctx context.Context, q Querier, entries []Entry) error
	ListFor(ctx context.Context, unitID int64) ([]Entry, error)
}

// Ledger is the append-only per-unit event log.
type Ledger struct {
	repo RepositoryPort
}

// NewLedger builds Ledger.
func NewLedger(repo RepositoryPort) *Ledger {
	return &Ledger{repo: repo}
}

// Append records a single event. A nil querier writes outside any caller
// transaction.
func (l *Ledger) Append(ctx context.Context, q Querier, e Entry) (Entry, error) {
	if e.UnitID <= 0 {
		return Entry{}, fmt.Errorf("%w: history: unit id required", httpx.ErrValidation)
	}
	if e.EventType == "" {
		return Entry{}, fmt.Errorf("%w: history: event type required", httpx.ErrValidation)
	}
	return l.repo.Append(ctx, q, e)
}

// AppendMany records one event per entry in a single pass.
func (l *Ledger) AppendMany(ctx context.Context, q Querier, entries []Entry) error {
	for _, e := range entries {
		if e.UnitID <= 0 || e.EventType == "" {
			return fmt.Errorf("%w: history: each entry requires unit id and event type", httpx.ErrValidation)
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return l.repo.AppendMany(ctx, q, entries)
}

// ListFor returns all entries for a unit, newest first.
func (l *Ledger) ListFor(ctx context.Context, unitID int64) ([]Entry, error) {
	if unitID <= 0 {
		return nil, fmt.Errorf("%w: history: invalid unit id %d", httpx.ErrValidation, unitID)
	}
	return l.repo.ListFor(ctx, unitID)
}
