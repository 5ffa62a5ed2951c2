package report

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	UnitsByStatus(ctx context.Context) ([]StatusCount, error)
	WarrantyCounts(ctx context.Context) (inWarranty, expired int, err error)
	OpenIssues(ctx context.Context) (int, error)
	LocationUtilization(ctx context.Context) ([]LocationUtilization, error)
}

// Service builds the dashboard overview. The same aggregate feeds the daily
// report job, so concurrent callers share one scan via singleflight.
type Service struct {
	repo    RepositoryPort
	logger  *slog.Logger
	printer *message.Printer
	group   singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, printer: message.NewPrinter(language.English)}
}

// Overview assembles the full aggregate.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	v, err, _ := s.group.Do("overview", func() (interface{}, error) {
		return s.build(ctx)
	})
	if err != nil {
		return Overview{}, err
	}
	return v.(Overview), nil
}

func (s *Service) build(ctx context.Context) (Overview, error) {
	byStatus, err := s.repo.UnitsByStatus(ctx)
	if err != nil {
		return Overview{}, err
	}
	total := 0
	for _, sc := range byStatus {
		total += sc.Count
	}

	inWarranty, expired, err := s.repo.WarrantyCounts(ctx)
	if err != nil {
		return Overview{}, err
	}
	openIssues, err := s.repo.OpenIssues(ctx)
	if err != nil {
		return Overview{}, err
	}
	locations, err := s.repo.LocationUtilization(ctx)
	if err != nil {
		return Overview{}, err
	}

	return Overview{
		GeneratedAt:     time.Now(),
		TotalUnits:      total,
		TotalUnitsLabel: s.printer.Sprintf("%d units", total),
		UnitsByStatus:   byStatus,
		InWarranty:      inWarranty,
		WarrantyExpired: expired,
		OpenIssues:      openIssues,
		Locations:       locations,
	}, nil
}
