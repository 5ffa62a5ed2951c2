package audit

import (
	"context"
	"log/slog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	exportCap       = 10000
)

// RepositoryPort is the data access contract the service needs.
type RepositoryPort interface {
	Timeline(ctx context.Context, f Filters, limit, offset int) ([]Entry, error)
}

// Service serves the audit timeline.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Timeline returns one page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, f Filters) (Page, error) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	entries, err := s.repo.Timeline(ctx, f, pageSize+1, offset)
	if err != nil {
		return Page{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return Page{Entries: entries, Page: page, PageSize: pageSize, HasNext: hasNext}, nil
}

// Export returns the filtered timeline without paging, capped to keep the
// response bounded.
func (s *Service) Export(ctx context.Context, f Filters) ([]Entry, error) {
	entries, err := s.repo.Timeline(ctx, f, exportCap, 0)
	if err != nil {
		return nil, err
	}
	if len(entries) == exportCap {
		s.logger.Warn("audit export truncated", slog.Int("cap", exportCap))
	}
	return entries, nil
}
