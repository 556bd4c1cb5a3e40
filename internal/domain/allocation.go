package domain

import "time"

// Allocation limits.
const (
	MaxProjectAllocations = 10
	MaxActiveProjects     = 3
)

// AllocationKey is the composite identity of an allocation.
type AllocationKey struct {
	ProjectID string
	MemberID  string
}

// Allocation links one member to one project.
type Allocation struct {
	ProjectID     string
	MemberID      string
	Project       Project
	Member        Member
	AllocatedDate time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key returns the composite key of the allocation.
func (a Allocation) Key() AllocationKey {
	return AllocationKey{ProjectID: a.ProjectID, MemberID: a.MemberID}
}
