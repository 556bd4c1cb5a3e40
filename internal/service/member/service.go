package member

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/google/uuid"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
)

// CreateInput encapsulates member creation attributes.
type CreateInput struct {
	ExternalID int
	Name       string
}

// UpdateInput carries the editable member attributes. ExternalID, when set,
// must match the stored one.
type UpdateInput struct {
	ExternalID int
	Name       string
}

// Service manages members directly, without the identity source.
type Service struct {
	members repository.MemberRepository
	logger  *slog.Logger
}

// New returns a member service.
func New(members repository.MemberRepository, logger *slog.Logger) Service {
	return Service{members: members, logger: logger}
}

var (
	errNameRequired       = domain.ValidationError("member name is required")
	errExternalIDRequired = domain.ValidationError("member external id must be positive")
)

// Create registers a member.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Member, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errNameRequired
	}
	if input.ExternalID <= 0 {
		return nil, errExternalIDRequired
	}
	if _, err := s.members.GetMemberByExternalID(ctx, input.ExternalID); err == nil {
		return nil, domain.ErrExternalIDTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	member := &domain.Member{ID: uuid.NewString(), ExternalID: input.ExternalID, Name: name}
	if err := s.members.CreateMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.ErrExternalIDTaken
		}
		return nil, err
	}
	s.logger.Info("member created", "member_id", member.ID, "external_id", member.ExternalID)
	return member, nil
}

// Update renames a member.
func (s Service) Update(ctx context.Context, memberID string, input UpdateInput) (*domain.Member, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errNameRequired
	}
	member, err := s.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if input.ExternalID != 0 && input.ExternalID != member.ExternalID {
		return nil, domain.ErrExternalIDImmutable
	}
	member.Name = name
	if err := s.members.UpdateMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	s.logger.Info("member updated", "member_id", member.ID)
	return member, nil
}

// Delete removes a member that manages no project and holds no allocation.
func (s Service) Delete(ctx context.Context, memberID string) error {
	if strings.TrimSpace(memberID) == "" {
		return domain.ErrMemberNotFound
	}
	if err := s.members.DeleteMember(ctx, memberID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrInvalidArgument):
			return domain.ErrMemberNotFound
		case errors.Is(err, repository.ErrReferenced):
			return domain.ErrMemberInUse
		}
		return err
	}
	s.logger.Info("member deleted", "member_id", memberID)
	return nil
}

// Get returns a member by internal id.
func (s Service) Get(ctx context.Context, memberID string) (*domain.Member, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, domain.ErrMemberNotFound
	}
	member, err := s.members.GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidArgument) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

// List returns a page of members filtered by a name substring.
func (s Service) List(ctx context.Context, name string, page domain.PageRequest) (domain.Page[domain.Member], error) {
	page = page.Normalize()
	items, total, err := s.members.ListMembers(ctx, name, page)
	if err != nil {
		return domain.Page[domain.Member]{}, err
	}
	return domain.Page[domain.Member]{Items: items, Number: page.Number, Size: page.Size, Total: total}, nil
}
