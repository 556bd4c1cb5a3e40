package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
)

const memberColumns = `id, external_id, name, created_at, updated_at`

// CreateMember inserts a member. A duplicate external id yields repository.ErrConflict.
func (r *Repository) CreateMember(ctx context.Context, member *domain.Member) error {
	const query = `INSERT INTO members (id, external_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at`
	var createdAt, updatedAt time.Time
	err := r.pool.QueryRow(ctx, query, member.ID, member.ExternalID, strings.TrimSpace(member.Name)).Scan(&createdAt, &updatedAt)
	if err != nil {
		return translateError(err)
	}
	member.CreatedAt = createdAt.UTC()
	member.UpdatedAt = updatedAt.UTC()
	return nil
}

// UpdateMember renames a member. The external id is never rewritten.
func (r *Repository) UpdateMember(ctx context.Context, member *domain.Member) error {
	const query = `UPDATE members SET name = $2, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	var updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query, member.ID, strings.TrimSpace(member.Name)).Scan(&updatedAt); err != nil {
		return translateError(err)
	}
	member.UpdatedAt = updatedAt.UTC()
	return nil
}

// DeleteMember removes a member. Members still referenced by projects or
// allocations yield repository.ErrReferenced.
func (r *Repository) DeleteMember(ctx context.Context, memberID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM members WHERE id = $1`, memberID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetMemberByID fetches a member by internal id.
func (r *Repository) GetMemberByID(ctx context.Context, memberID string) (*domain.Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, memberID)
	return scanMember(row)
}

// GetMemberByExternalID fetches a member by the id assigned by the identity source.
func (r *Repository) GetMemberByExternalID(ctx context.Context, externalID int) (*domain.Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE external_id = $1`, externalID)
	return scanMember(row)
}

// ListMembers returns a page of members whose name contains the filter.
func (r *Repository) ListMembers(ctx context.Context, name string, page domain.PageRequest) ([]domain.Member, int64, error) {
	pattern := containsPattern(name)
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM members WHERE name ILIKE $1 ESCAPE '\'`, pattern).Scan(&total); err != nil {
		return nil, 0, translateError(err)
	}
	const query = `SELECT ` + memberColumns + ` FROM members
		WHERE name ILIKE $1 ESCAPE '\'
		ORDER BY name ASC, id ASC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, pattern, page.Size, page.Offset())
	if err != nil {
		return nil, 0, translateError(err)
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, *m)
	}
	return members, total, rows.Err()
}

func scanMember(row rowScanner) (*domain.Member, error) {
	var m domain.Member
	if err := row.Scan(&m.ID, &m.ExternalID, &m.Name, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, translateError(err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}
