package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
	"github.com/logicinvent/project-portfolio-api/internal/ws"
)

// MemberResolver maps an external member id onto a stored member.
type MemberResolver interface {
	Resolve(ctx context.Context, externalID int) (*domain.Member, error)
}

// Publisher receives project activity events.
type Publisher interface {
	Publish(event ws.Event)
}

// Input encapsulates the writable project attributes.
type Input struct {
	Name              string
	StartDate         time.Time
	PlannedEndDate    time.Time
	ActualEndDate     *time.Time
	TotalBudget       decimal.Decimal
	Description       *string
	ManagerExternalID int
	Status            domain.ProjectStatus
}

// Service enforces the project lifecycle.
type Service struct {
	projects  repository.ProjectRepository
	resolver  MemberResolver
	publisher Publisher
	logger    *slog.Logger
}

// New returns a project service. publisher may be nil.
func New(projects repository.ProjectRepository, resolver MemberResolver, publisher Publisher, logger *slog.Logger) Service {
	return Service{projects: projects, resolver: resolver, publisher: publisher, logger: logger}
}

var errNameRequired = domain.ValidationError("project name is required")

// Create registers a project in EM_ANALISE whatever status was requested.
func (s Service) Create(ctx context.Context, input Input) (*domain.Project, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	manager, err := s.resolver.Resolve(ctx, input.ManagerExternalID)
	if err != nil {
		return nil, err
	}
	project := &domain.Project{
		ID:     uuid.NewString(),
		Status: domain.StatusEmAnalise,
	}
	apply(project, input, manager)
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, translate(err)
	}
	s.logger.Info("project created", "project_id", project.ID, "manager_id", manager.ID, "status", project.Status)
	s.publish(ws.EventProjectCreated, project)
	return project, nil
}

// Update rewrites a project. The requested status must be reachable from the
// current one.
func (s Service) Update(ctx context.Context, projectID string, input Input) (*domain.Project, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	if !input.Status.Valid() {
		return nil, domain.ErrUnknownStatus
	}
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	manager, err := s.resolver.Resolve(ctx, input.ManagerExternalID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(project.Status, input.Status) {
		s.logger.Warn("project status transition rejected", "project_id", project.ID, "from", project.Status, "to", input.Status)
		return nil, domain.ErrStatusTransition
	}
	previous := project.Status
	apply(project, input, manager)
	project.Status = input.Status
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, translate(err)
	}
	s.logger.Info("project updated", "project_id", project.ID, "from", previous, "status", project.Status)
	s.publish(ws.EventProjectUpdated, project)
	return project, nil
}

// Delete removes a project unless its status forbids it.
func (s Service) Delete(ctx context.Context, projectID string) error {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !domain.Deletable(project.Status) {
		return domain.ErrProjectNotDeletable
	}
	if err := s.projects.DeleteProject(ctx, project.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrProjectNotFound
		}
		return err
	}
	s.logger.Info("project deleted", "project_id", project.ID, "status", project.Status)
	s.publish(ws.EventProjectDeleted, project)
	return nil
}

// Get returns project details by identifier.
func (s Service) Get(ctx context.Context, projectID string) (*domain.Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, domain.ErrProjectNotFound
	}
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidArgument) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

// List returns a page of projects filtered by a name substring.
func (s Service) List(ctx context.Context, name string, page domain.PageRequest) (domain.Page[domain.Project], error) {
	page = page.Normalize()
	items, total, err := s.projects.ListProjects(ctx, name, page)
	if err != nil {
		return domain.Page[domain.Project]{}, err
	}
	return domain.Page[domain.Project]{Items: items, Number: page.Number, Size: page.Size, Total: total}, nil
}

func validate(input Input) error {
	if strings.TrimSpace(input.Name) == "" {
		return errNameRequired
	}
	if input.TotalBudget.IsNegative() {
		return domain.ErrNegativeBudget
	}
	if input.StartDate.IsZero() || input.PlannedEndDate.IsZero() {
		return domain.ValidationError("start date and planned end date are required")
	}
	return nil
}

func apply(project *domain.Project, input Input, manager *domain.Member) {
	project.Name = strings.TrimSpace(input.Name)
	project.StartDate = input.StartDate
	project.PlannedEndDate = input.PlannedEndDate
	project.ActualEndDate = input.ActualEndDate
	project.TotalBudget = input.TotalBudget
	project.Description = input.Description
	project.Manager = *manager
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrReferenced):
		return domain.ErrMemberNotFound
	case errors.Is(err, repository.ErrInvalidArgument):
		return domain.ValidationError("invalid project data")
	}
	return err
}

func (s Service) publish(eventType string, project *domain.Project) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ws.Event{
		Type:      eventType,
		ProjectID: project.ID,
		Payload: map[string]any{
			"name":       project.Name,
			"status":     project.Status,
			"risk_level": project.Risk(),
		},
	})
}
