package postgres

import (
	"context"
	"time"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
)

const allocationSelect = `SELECT pm.project_id, pm.member_id, pm.allocated_date, pm.created_at, pm.updated_at,
		p.id, p.name, p.start_date, p.planned_end_date, p.actual_end_date,
		p.total_budget, p.description, p.status, p.created_at, p.updated_at,
		mg.id, mg.external_id, mg.name, mg.created_at, mg.updated_at,
		m.id, m.external_id, m.name, m.created_at, m.updated_at
	FROM project_members pm
	JOIN projects p ON p.id = pm.project_id
	JOIN members mg ON mg.id = p.manager_id
	JOIN members m ON m.id = pm.member_id`

// CreateAllocation inserts an allocation. A second row for the same pair
// yields repository.ErrConflict.
func (r *Repository) CreateAllocation(ctx context.Context, allocation *domain.Allocation) error {
	const query = `INSERT INTO project_members (project_id, member_id, allocated_date, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at`
	var createdAt, updatedAt time.Time
	err := r.pool.QueryRow(ctx, query, allocation.ProjectID, allocation.MemberID, allocation.AllocatedDate).Scan(&createdAt, &updatedAt)
	if err != nil {
		return translateError(err)
	}
	allocation.CreatedAt = createdAt.UTC()
	allocation.UpdatedAt = updatedAt.UTC()
	return nil
}

// ReplaceAllocation rewrites the row identified by current, including its key.
func (r *Repository) ReplaceAllocation(ctx context.Context, current domain.AllocationKey, allocation *domain.Allocation) error {
	const query = `UPDATE project_members
		SET project_id = $3, member_id = $4, allocated_date = $5, updated_at = NOW()
		WHERE project_id = $1 AND member_id = $2
		RETURNING created_at, updated_at`
	var createdAt, updatedAt time.Time
	err := r.pool.QueryRow(ctx, query,
		current.ProjectID,
		current.MemberID,
		allocation.ProjectID,
		allocation.MemberID,
		allocation.AllocatedDate,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return translateError(err)
	}
	allocation.CreatedAt = createdAt.UTC()
	allocation.UpdatedAt = updatedAt.UTC()
	return nil
}

// DeleteAllocation removes one allocation.
func (r *Repository) DeleteAllocation(ctx context.Context, key domain.AllocationKey) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1 AND member_id = $2`, key.ProjectID, key.MemberID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetAllocation fetches one allocation with project and member snapshots.
func (r *Repository) GetAllocation(ctx context.Context, key domain.AllocationKey) (*domain.Allocation, error) {
	row := r.pool.QueryRow(ctx, allocationSelect+` WHERE pm.project_id = $1 AND pm.member_id = $2`, key.ProjectID, key.MemberID)
	return scanAllocation(row)
}

// ListAllocationsByProject returns every allocation of a project.
func (r *Repository) ListAllocationsByProject(ctx context.Context, projectID string) ([]domain.Allocation, error) {
	return r.listAllocations(ctx, allocationSelect+` WHERE pm.project_id = $1 ORDER BY pm.created_at ASC`, projectID)
}

// ListAllocationsByMember returns every allocation of a member across projects.
func (r *Repository) ListAllocationsByMember(ctx context.Context, memberID string) ([]domain.Allocation, error) {
	return r.listAllocations(ctx, allocationSelect+` WHERE pm.member_id = $1 ORDER BY pm.created_at ASC`, memberID)
}

// PageAllocationsByProject returns a page of a project's allocations whose
// member name contains the filter.
func (r *Repository) PageAllocationsByProject(ctx context.Context, projectID, memberName string, page domain.PageRequest) ([]domain.Allocation, int64, error) {
	pattern := containsPattern(memberName)
	const countQuery = `SELECT COUNT(1) FROM project_members pm
		JOIN members m ON m.id = pm.member_id
		WHERE pm.project_id = $1 AND m.name ILIKE $2 ESCAPE '\'`
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, projectID, pattern).Scan(&total); err != nil {
		return nil, 0, translateError(err)
	}
	query := allocationSelect + ` WHERE pm.project_id = $1 AND m.name ILIKE $2 ESCAPE '\'
		ORDER BY m.name ASC, m.id ASC
		LIMIT $3 OFFSET $4`
	items, err := r.listAllocations(ctx, query, projectID, pattern, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository) listAllocations(ctx context.Context, query string, args ...any) ([]domain.Allocation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	allocations := make([]domain.Allocation, 0)
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return allocations, nil
}

func scanAllocation(row rowScanner) (*domain.Allocation, error) {
	var (
		a      domain.Allocation
		status string
	)
	dest := []any{&a.ProjectID, &a.MemberID, &a.AllocatedDate, &a.CreatedAt, &a.UpdatedAt}
	dest = append(dest, projectDest(&a.Project, &status)...)
	dest = append(dest, &a.Member.ID, &a.Member.ExternalID, &a.Member.Name, &a.Member.CreatedAt, &a.Member.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, translateError(err)
	}
	normalizeProject(&a.Project, status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.Member.CreatedAt = a.Member.CreatedAt.UTC()
	a.Member.UpdatedAt = a.Member.UpdatedAt.UTC()
	return &a, nil
}
