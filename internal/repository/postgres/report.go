package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
)

// CountDistinctAllocatedMembers counts members holding at least one allocation.
func (r *Repository) CountDistinctAllocatedMembers(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT member_id) FROM project_members`).Scan(&total); err != nil {
		return 0, translateError(err)
	}
	return total, nil
}

// AverageClosedProjectDurationDays averages actual_end_date - start_date in
// days over closed projects that carry an actual end date. It returns 0 when
// no project qualifies.
func (r *Repository) AverageClosedProjectDurationDays(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(AVG((actual_end_date - start_date)::float8), 0)
		FROM projects
		WHERE status = $1 AND actual_end_date IS NOT NULL`
	var avg float64
	if err := r.pool.QueryRow(ctx, query, string(domain.StatusEncerrado)).Scan(&avg); err != nil {
		return 0, translateError(err)
	}
	return avg, nil
}

// TotalBudgetByStatus sums budgets grouped by status. Statuses without
// projects are omitted.
func (r *Repository) TotalBudgetByStatus(ctx context.Context) ([]domain.BudgetByStatus, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COALESCE(SUM(total_budget), 0) FROM projects GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := make([]domain.BudgetByStatus, 0)
	for rows.Next() {
		var (
			status string
			total  decimal.Decimal
		)
		if err := rows.Scan(&status, &total); err != nil {
			return nil, translateError(err)
		}
		out = append(out, domain.BudgetByStatus{Status: domain.ProjectStatus(status), Total: total})
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

// CountProjectsByStatus counts projects in one status.
func (r *Repository) CountProjectsByStatus(ctx context.Context, status domain.ProjectStatus) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM projects WHERE status = $1`, string(status)).Scan(&total); err != nil {
		return 0, translateError(err)
	}
	return total, nil
}
