// Package memory is an in-process implementation of the repository
// interfaces. It enforces the same keys and references as the SQL schema.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
)

// Store keeps members, projects and allocations in maps guarded by one lock.
type Store struct {
	mu          sync.RWMutex
	members     map[string]domain.Member
	byExternal  map[int]string
	projects    map[string]domain.Project
	allocations map[domain.AllocationKey]domain.Allocation
	now         func() time.Time
}

var (
	_ repository.MemberRepository     = (*Store)(nil)
	_ repository.ProjectRepository    = (*Store)(nil)
	_ repository.AllocationRepository = (*Store)(nil)
	_ repository.ReportRepository     = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		members:     make(map[string]domain.Member),
		byExternal:  make(map[int]string),
		projects:    make(map[string]domain.Project),
		allocations: make(map[domain.AllocationKey]domain.Allocation),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateMember inserts a member.
func (s *Store) CreateMember(ctx context.Context, member *domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[member.ID]; ok {
		return repository.ErrConflict
	}
	if _, ok := s.byExternal[member.ExternalID]; ok {
		return repository.ErrConflict
	}
	now := s.now()
	member.CreatedAt, member.UpdatedAt = now, now
	s.members[member.ID] = *member
	s.byExternal[member.ExternalID] = member.ID
	return nil
}

// UpdateMember renames a member.
func (s *Store) UpdateMember(ctx context.Context, member *domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.members[member.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Name = member.Name
	stored.UpdatedAt = s.now()
	s.members[member.ID] = stored
	member.UpdatedAt = stored.UpdatedAt
	return nil
}

// DeleteMember removes a member that nothing references.
func (s *Store) DeleteMember(ctx context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.members[memberID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, p := range s.projects {
		if p.Manager.ID == memberID {
			return repository.ErrReferenced
		}
	}
	for key := range s.allocations {
		if key.MemberID == memberID {
			return repository.ErrReferenced
		}
	}
	delete(s.members, memberID)
	delete(s.byExternal, stored.ExternalID)
	return nil
}

// GetMemberByID fetches a member by internal id.
func (s *Store) GetMemberByID(ctx context.Context, memberID string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

// GetMemberByExternalID fetches a member by external id.
func (s *Store) GetMemberByExternalID(ctx context.Context, externalID int) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m := s.members[id]
	return &m, nil
}

// ListMembers pages members ordered by name.
func (s *Store) ListMembers(ctx context.Context, name string, page domain.PageRequest) ([]domain.Member, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Member, 0)
	for _, m := range s.members {
		if contains(m.Name, name) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, page), int64(len(out)), nil
}

// CreateProject inserts a project whose manager must exist.
func (s *Store) CreateProject(ctx context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.ID]; ok {
		return repository.ErrConflict
	}
	if err := s.checkProject(project); err != nil {
		return err
	}
	now := s.now()
	project.CreatedAt, project.UpdatedAt = now, now
	s.projects[project.ID] = *project
	return nil
}

// UpdateProject rewrites a project.
func (s *Store) UpdateProject(ctx context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.projects[project.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := s.checkProject(project); err != nil {
		return err
	}
	project.CreatedAt = stored.CreatedAt
	project.UpdatedAt = s.now()
	s.projects[project.ID] = *project
	return nil
}

func (s *Store) checkProject(project *domain.Project) error {
	if _, ok := s.members[project.Manager.ID]; !ok {
		return repository.ErrReferenced
	}
	if project.TotalBudget.IsNegative() || !project.Status.Valid() {
		return repository.ErrInvalidArgument
	}
	return nil
}

// DeleteProject removes a project and cascades to its allocations.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.projects, projectID)
	for key := range s.allocations {
		if key.ProjectID == projectID {
			delete(s.allocations, key)
		}
	}
	return nil
}

// GetProjectByID fetches a project with its current manager.
func (s *Store) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = s.hydrateProject(p)
	return &p, nil
}

// ListProjects pages projects, newest first.
func (s *Store) ListProjects(ctx context.Context, name string, page domain.PageRequest) ([]domain.Project, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Project, 0)
	for _, p := range s.projects {
		if contains(p.Name, name) {
			out = append(out, s.hydrateProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, page), int64(len(out)), nil
}

func (s *Store) hydrateProject(p domain.Project) domain.Project {
	if m, ok := s.members[p.Manager.ID]; ok {
		p.Manager = m
	}
	return p
}

// CreateAllocation inserts an allocation keyed by (project, member).
func (s *Store) CreateAllocation(ctx context.Context, allocation *domain.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAllocation(allocation); err != nil {
		return err
	}
	key := allocation.Key()
	if _, ok := s.allocations[key]; ok {
		return repository.ErrConflict
	}
	now := s.now()
	allocation.CreatedAt, allocation.UpdatedAt = now, now
	s.allocations[key] = *allocation
	return nil
}

// ReplaceAllocation rewrites the allocation stored under current.
func (s *Store) ReplaceAllocation(ctx context.Context, current domain.AllocationKey, allocation *domain.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.allocations[current]
	if !ok {
		return repository.ErrNotFound
	}
	if err := s.checkAllocation(allocation); err != nil {
		return err
	}
	next := allocation.Key()
	if next != current {
		if _, taken := s.allocations[next]; taken {
			return repository.ErrConflict
		}
	}
	allocation.CreatedAt = stored.CreatedAt
	allocation.UpdatedAt = s.now()
	delete(s.allocations, current)
	s.allocations[next] = *allocation
	return nil
}

func (s *Store) checkAllocation(allocation *domain.Allocation) error {
	if _, ok := s.projects[allocation.ProjectID]; !ok {
		return repository.ErrReferenced
	}
	if _, ok := s.members[allocation.MemberID]; !ok {
		return repository.ErrReferenced
	}
	return nil
}

// DeleteAllocation removes an allocation.
func (s *Store) DeleteAllocation(ctx context.Context, key domain.AllocationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allocations[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.allocations, key)
	return nil
}

// GetAllocation fetches an allocation with current project and member snapshots.
func (s *Store) GetAllocation(ctx context.Context, key domain.AllocationKey) (*domain.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.allocations[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a = s.hydrateAllocation(a)
	return &a, nil
}

// ListAllocationsByProject returns a project's allocations.
func (s *Store) ListAllocationsByProject(ctx context.Context, projectID string) ([]domain.Allocation, error) {
	return s.filterAllocations(func(a domain.Allocation) bool { return a.ProjectID == projectID }), nil
}

// ListAllocationsByMember returns a member's allocations.
func (s *Store) ListAllocationsByMember(ctx context.Context, memberID string) ([]domain.Allocation, error) {
	return s.filterAllocations(func(a domain.Allocation) bool { return a.MemberID == memberID }), nil
}

// PageAllocationsByProject pages a project's allocations ordered by member name.
func (s *Store) PageAllocationsByProject(ctx context.Context, projectID, memberName string, page domain.PageRequest) ([]domain.Allocation, int64, error) {
	out := s.filterAllocations(func(a domain.Allocation) bool {
		return a.ProjectID == projectID && contains(a.Member.Name, memberName)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Member.Name != out[j].Member.Name {
			return out[i].Member.Name < out[j].Member.Name
		}
		return out[i].MemberID < out[j].MemberID
	})
	return paginate(out, page), int64(len(out)), nil
}

func (s *Store) filterAllocations(keep func(domain.Allocation) bool) []domain.Allocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Allocation, 0)
	for _, a := range s.allocations {
		a = s.hydrateAllocation(a)
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) hydrateAllocation(a domain.Allocation) domain.Allocation {
	if p, ok := s.projects[a.ProjectID]; ok {
		a.Project = s.hydrateProject(p)
	}
	if m, ok := s.members[a.MemberID]; ok {
		a.Member = m
	}
	return a
}

// CountDistinctAllocatedMembers counts members with at least one allocation.
func (s *Store) CountDistinctAllocatedMembers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for key := range s.allocations {
		seen[key.MemberID] = struct{}{}
	}
	return int64(len(seen)), nil
}

// AverageClosedProjectDurationDays averages closed project durations in days.
func (s *Store) AverageClosedProjectDurationDays(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		sum   float64
		count int
	)
	for _, p := range s.projects {
		if p.Status != domain.StatusEncerrado || p.ActualEndDate == nil {
			continue
		}
		sum += p.ActualEndDate.Sub(p.StartDate).Hours() / 24
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

// TotalBudgetByStatus sums budgets per status present in the store.
func (s *Store) TotalBudgetByStatus(ctx context.Context) ([]domain.BudgetByStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[domain.ProjectStatus]decimal.Decimal)
	for _, p := range s.projects {
		totals[p.Status] = totals[p.Status].Add(p.TotalBudget)
	}
	out := make([]domain.BudgetByStatus, 0, len(totals))
	for status, total := range totals {
		out = append(out, domain.BudgetByStatus{Status: status, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

// CountProjectsByStatus counts projects in one status.
func (s *Store) CountProjectsByStatus(ctx context.Context, status domain.ProjectStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.projects {
		if p.Status == status {
			n++
		}
	}
	return n, nil
}

func contains(value, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(filter))
}

func paginate[T any](items []T, page domain.PageRequest) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
