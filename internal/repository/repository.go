package repository

import (
	"context"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
)

// MemberRepository persists members.
type MemberRepository interface {
	CreateMember(ctx context.Context, member *domain.Member) error
	UpdateMember(ctx context.Context, member *domain.Member) error
	DeleteMember(ctx context.Context, memberID string) error
	GetMemberByID(ctx context.Context, memberID string) (*domain.Member, error)
	GetMemberByExternalID(ctx context.Context, externalID int) (*domain.Member, error)
	ListMembers(ctx context.Context, name string, page domain.PageRequest) ([]domain.Member, int64, error)
}

// ProjectRepository persists projects together with their manager reference.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	UpdateProject(ctx context.Context, project *domain.Project) error
	DeleteProject(ctx context.Context, projectID string) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	ListProjects(ctx context.Context, name string, page domain.PageRequest) ([]domain.Project, int64, error)
}

// AllocationRepository persists project/member allocations keyed by
// (project id, member id).
type AllocationRepository interface {
	CreateAllocation(ctx context.Context, allocation *domain.Allocation) error
	ReplaceAllocation(ctx context.Context, current domain.AllocationKey, allocation *domain.Allocation) error
	DeleteAllocation(ctx context.Context, key domain.AllocationKey) error
	GetAllocation(ctx context.Context, key domain.AllocationKey) (*domain.Allocation, error)
	ListAllocationsByProject(ctx context.Context, projectID string) ([]domain.Allocation, error)
	ListAllocationsByMember(ctx context.Context, memberID string) ([]domain.Allocation, error)
	PageAllocationsByProject(ctx context.Context, projectID, memberName string, page domain.PageRequest) ([]domain.Allocation, int64, error)
}

// ReportRepository computes read-only aggregates.
type ReportRepository interface {
	CountDistinctAllocatedMembers(ctx context.Context) (int64, error)
	AverageClosedProjectDurationDays(ctx context.Context) (float64, error)
	TotalBudgetByStatus(ctx context.Context) ([]domain.BudgetByStatus, error)
	CountProjectsByStatus(ctx context.Context, status domain.ProjectStatus) (int64, error)
}
