package allocation

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
	"github.com/logicinvent/project-portfolio-api/internal/telemetry"
	"github.com/logicinvent/project-portfolio-api/internal/ws"
)

// MemberResolver maps an external member id onto a stored member, fetching
// it from the identity source when needed.
type MemberResolver interface {
	Resolve(ctx context.Context, externalID int) (*domain.Member, error)
}

// Publisher receives project activity events.
type Publisher interface {
	Publish(event ws.Event)
}

// AllocateInput links a member to a project.
type AllocateInput struct {
	ProjectID        string
	MemberExternalID int
	AllocatedDate    time.Time
}

// UpdateInput re-points an existing allocation. Zero values keep the current
// project, member and date.
type UpdateInput struct {
	ProjectID        string
	MemberExternalID int
	AllocatedDate    *time.Time
}

// Engine enforces the allocation rules.
type Engine struct {
	allocations repository.AllocationRepository
	projects    repository.ProjectRepository
	members     repository.MemberRepository
	resolver    MemberResolver
	publisher   Publisher
	logger      *slog.Logger
	now         func() time.Time
	rejections  *prometheus.CounterVec
}

// New returns an allocation engine. publisher may be nil.
func New(allocations repository.AllocationRepository, projects repository.ProjectRepository, members repository.MemberRepository, resolver MemberResolver, publisher Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		allocations: allocations,
		projects:    projects,
		members:     members,
		resolver:    resolver,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
		rejections: telemetry.CounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "allocation",
			Name:      "rejections_total",
			Help:      "Allocation requests rejected by a business rule",
		}, "reason"),
	}
}

// Allocate links a member to a project after checking project capacity, the
// member's active project limit and duplicates, in that order.
func (e *Engine) Allocate(ctx context.Context, input AllocateInput) (*domain.Allocation, error) {
	if err := e.checkDate(input.AllocatedDate); err != nil {
		return nil, err
	}
	member, err := e.resolver.Resolve(ctx, input.MemberExternalID)
	if err != nil {
		return nil, err
	}
	project, err := e.loadProject(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	existing, err := e.allocations.ListAllocationsByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= domain.MaxProjectAllocations {
		return nil, e.reject("project_capacity", domain.ErrProjectCapacityExceeded, project.ID, member.ID)
	}
	held, err := e.allocations.ListAllocationsByMember(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	if activeCount(held) >= domain.MaxActiveProjects {
		return nil, e.reject("member_active_limit", domain.ErrMemberActiveLimit, project.ID, member.ID)
	}
	for _, a := range existing {
		if a.MemberID == member.ID {
			return nil, e.reject("duplicate", domain.ErrMemberAlreadyAllocated, project.ID, member.ID)
		}
	}

	allocation := &domain.Allocation{
		ProjectID:     project.ID,
		MemberID:      member.ID,
		Project:       *project,
		Member:        *member,
		AllocatedDate: dateOf(input.AllocatedDate),
	}
	if err := e.allocations.CreateAllocation(ctx, allocation); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, e.reject("duplicate", domain.ErrMemberAlreadyAllocated, project.ID, member.ID)
		}
		return nil, translate(err)
	}
	e.logger.Info("member allocated", "project_id", project.ID, "member_id", member.ID, "external_id", member.ExternalID)
	e.publish(ws.EventAllocationCreated, allocation)
	return allocation, nil
}

// Update re-points the allocation of (projectID, memberExternalID). Capacity
// and active limits are not re-checked; a key collision still fails.
func (e *Engine) Update(ctx context.Context, projectID string, memberExternalID int, input UpdateInput) (*domain.Allocation, error) {
	member, err := e.resolver.Resolve(ctx, memberExternalID)
	if err != nil {
		return nil, err
	}
	current, err := e.get(ctx, domain.AllocationKey{ProjectID: strings.TrimSpace(projectID), MemberID: member.ID})
	if err != nil {
		return nil, err
	}
	updated := *current
	if target := strings.TrimSpace(input.ProjectID); target != "" && target != current.ProjectID {
		project, err := e.loadProject(ctx, target)
		if err != nil {
			return nil, err
		}
		updated.ProjectID, updated.Project = project.ID, *project
	}
	if input.MemberExternalID != 0 && input.MemberExternalID != member.ExternalID {
		other, err := e.resolver.Resolve(ctx, input.MemberExternalID)
		if err != nil {
			return nil, err
		}
		updated.MemberID, updated.Member = other.ID, *other
	}
	if input.AllocatedDate != nil {
		if err := e.checkDate(*input.AllocatedDate); err != nil {
			return nil, err
		}
		updated.AllocatedDate = dateOf(*input.AllocatedDate)
	}

	if err := e.allocations.ReplaceAllocation(ctx, current.Key(), &updated); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.ErrAllocationNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, domain.ErrMemberAlreadyAllocated
		}
		return nil, translate(err)
	}
	e.logger.Info("allocation updated",
		"project_id", updated.ProjectID, "member_id", updated.MemberID,
		"previous_project_id", current.ProjectID, "previous_member_id", current.MemberID)
	e.publish(ws.EventAllocationUpdated, &updated)
	return &updated, nil
}

// Delete removes an allocation. The member is looked up in the store only.
func (e *Engine) Delete(ctx context.Context, projectID string, memberExternalID int) error {
	allocation, err := e.Get(ctx, projectID, memberExternalID)
	if err != nil {
		return err
	}
	if err := e.allocations.DeleteAllocation(ctx, allocation.Key()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrAllocationNotFound
		}
		return err
	}
	e.logger.Info("allocation deleted", "project_id", allocation.ProjectID, "member_id", allocation.MemberID)
	e.publish(ws.EventAllocationDeleted, allocation)
	return nil
}

// Get returns the allocation of (projectID, memberExternalID). The member is
// looked up in the store only.
func (e *Engine) Get(ctx context.Context, projectID string, memberExternalID int) (*domain.Allocation, error) {
	member, err := e.members.GetMemberByExternalID(ctx, memberExternalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrMemberAssociationNotFound
		}
		return nil, err
	}
	return e.get(ctx, domain.AllocationKey{ProjectID: strings.TrimSpace(projectID), MemberID: member.ID})
}

// ListByProject pages a project's allocations, optionally filtered by a
// member name substring.
func (e *Engine) ListByProject(ctx context.Context, projectID, memberName string, page domain.PageRequest) (domain.Page[domain.Allocation], error) {
	project, err := e.loadProject(ctx, projectID)
	if err != nil {
		return domain.Page[domain.Allocation]{}, err
	}
	page = page.Normalize()
	items, total, err := e.allocations.PageAllocationsByProject(ctx, project.ID, memberName, page)
	if err != nil {
		return domain.Page[domain.Allocation]{}, err
	}
	return domain.Page[domain.Allocation]{Items: items, Number: page.Number, Size: page.Size, Total: total}, nil
}

func (e *Engine) get(ctx context.Context, key domain.AllocationKey) (*domain.Allocation, error) {
	if key.ProjectID == "" {
		return nil, domain.ErrAllocationNotFound
	}
	allocation, err := e.allocations.GetAllocation(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidArgument) {
			return nil, domain.ErrAllocationNotFound
		}
		return nil, err
	}
	return allocation, nil
}

func (e *Engine) loadProject(ctx context.Context, projectID string) (*domain.Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, domain.ErrProjectNotFound
	}
	project, err := e.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidArgument) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (e *Engine) checkDate(allocated time.Time) error {
	if allocated.IsZero() {
		return domain.ValidationError("allocated date is required")
	}
	if dateOf(allocated).After(dateOf(e.now())) {
		return domain.ErrAllocatedInFuture
	}
	return nil
}

func (e *Engine) reject(reason string, err error, projectID, memberID string) error {
	e.rejections.WithLabelValues(reason).Inc()
	e.logger.Warn("allocation rejected", "reason", reason, "project_id", projectID, "member_id", memberID)
	return err
}

func (e *Engine) publish(eventType string, a *domain.Allocation) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(ws.Event{
		Type:      eventType,
		ProjectID: a.ProjectID,
		Payload: map[string]any{
			"member_id":          a.MemberID,
			"member_external_id": a.Member.ExternalID,
			"allocated_date":     a.AllocatedDate.Format(time.DateOnly),
		},
	})
}

func activeCount(allocations []domain.Allocation) int {
	n := 0
	for _, a := range allocations {
		if domain.Active(a.Project.Status) {
			n++
		}
	}
	return n
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrReferenced):
		return domain.ErrProjectNotFound
	case errors.Is(err, repository.ErrInvalidArgument):
		return domain.ValidationError("invalid allocation data")
	}
	return err
}
