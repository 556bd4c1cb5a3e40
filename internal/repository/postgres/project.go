package postgres

import (
	"context"
	"time"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
)

const projectSelect = `SELECT p.id, p.name, p.start_date, p.planned_end_date, p.actual_end_date,
		p.total_budget, p.description, p.status, p.created_at, p.updated_at,
		mg.id, mg.external_id, mg.name, mg.created_at, mg.updated_at
	FROM projects p
	JOIN members mg ON mg.id = p.manager_id`

// CreateProject inserts a project. The manager must already be persisted.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, name, start_date, planned_end_date, actual_end_date,
			total_budget, description, manager_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at`
	var createdAt, updatedAt time.Time
	err := r.pool.QueryRow(ctx, query,
		project.ID,
		project.Name,
		project.StartDate,
		project.PlannedEndDate,
		project.ActualEndDate,
		project.TotalBudget,
		project.Description,
		project.Manager.ID,
		string(project.Status),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return translateError(err)
	}
	project.CreatedAt = createdAt.UTC()
	project.UpdatedAt = updatedAt.UTC()
	return nil
}

// UpdateProject rewrites every mutable project column.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	const query = `UPDATE projects SET name = $2, start_date = $3, planned_end_date = $4,
			actual_end_date = $5, total_budget = $6, description = $7, manager_id = $8,
			status = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, query,
		project.ID,
		project.Name,
		project.StartDate,
		project.PlannedEndDate,
		project.ActualEndDate,
		project.TotalBudget,
		project.Description,
		project.Manager.ID,
		string(project.Status),
	).Scan(&updatedAt)
	if err != nil {
		return translateError(err)
	}
	project.UpdatedAt = updatedAt.UTC()
	return nil
}

// DeleteProject removes a project together with its allocations.
func (r *Repository) DeleteProject(ctx context.Context, projectID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetProjectByID fetches a project with its manager.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	row := r.pool.QueryRow(ctx, projectSelect+` WHERE p.id = $1`, projectID)
	return scanProject(row)
}

// ListProjects returns a page of projects whose name contains the filter.
func (r *Repository) ListProjects(ctx context.Context, name string, page domain.PageRequest) ([]domain.Project, int64, error) {
	pattern := containsPattern(name)
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM projects WHERE name ILIKE $1 ESCAPE '\'`, pattern).Scan(&total); err != nil {
		return nil, 0, translateError(err)
	}
	query := projectSelect + ` WHERE p.name ILIKE $1 ESCAPE '\'
		ORDER BY p.created_at DESC, p.id ASC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, pattern, page.Size, page.Offset())
	if err != nil {
		return nil, 0, translateError(err)
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, *p)
	}
	return projects, total, rows.Err()
}

// projectDest returns scan targets matching projectSelect's column order.
func projectDest(p *domain.Project, status *string) []any {
	return []any{
		&p.ID, &p.Name, &p.StartDate, &p.PlannedEndDate, &p.ActualEndDate,
		&p.TotalBudget, &p.Description, status, &p.CreatedAt, &p.UpdatedAt,
		&p.Manager.ID, &p.Manager.ExternalID, &p.Manager.Name, &p.Manager.CreatedAt, &p.Manager.UpdatedAt,
	}
}

func normalizeProject(p *domain.Project, status string) {
	p.Status = domain.ProjectStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.Manager.CreatedAt = p.Manager.CreatedAt.UTC()
	p.Manager.UpdatedAt = p.Manager.UpdatedAt.UTC()
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p      domain.Project
		status string
	)
	if err := row.Scan(projectDest(&p, &status)...); err != nil {
		return nil, translateError(err)
	}
	normalizeProject(&p, status)
	return &p, nil
}
