package report

import (
	"context"

	"log/slog"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
)

// Service computes read-only portfolio aggregates.
type Service struct {
	reports repository.ReportRepository
	logger  *slog.Logger
}

// New returns a report service.
func New(reports repository.ReportRepository, logger *slog.Logger) Service {
	return Service{reports: reports, logger: logger}
}

// UniqueAllocatedMembers counts members holding at least one allocation.
func (s Service) UniqueAllocatedMembers(ctx context.Context) (int64, error) {
	return s.reports.CountDistinctAllocatedMembers(ctx)
}

// AverageClosedProjectDuration is the mean duration in days of ENCERRADO
// projects with an actual end date, or 0 when there are none.
func (s Service) AverageClosedProjectDuration(ctx context.Context) (float64, error) {
	return s.reports.AverageClosedProjectDurationDays(ctx)
}

// BudgetByStatus sums budgets per status that has at least one project.
func (s Service) BudgetByStatus(ctx context.Context) ([]domain.BudgetByStatus, error) {
	return s.reports.TotalBudgetByStatus(ctx)
}

// ProjectsByStatus counts projects currently in status.
func (s Service) ProjectsByStatus(ctx context.Context, status domain.ProjectStatus) (int64, error) {
	if !status.Valid() {
		return 0, domain.ErrUnknownStatus
	}
	return s.reports.CountProjectsByStatus(ctx, status)
}
