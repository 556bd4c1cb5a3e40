package member

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository"
)

// flightTimeout bounds one shared fetch-and-persist run.
const flightTimeout = 15 * time.Second

// IdentitySource fetches member profiles from the external authority.
type IdentitySource interface {
	GetByExternalID(ctx context.Context, externalID int) (domain.MemberProfile, error)
}

// Eligibility holds the occupation and contract a fetched profile must carry.
type Eligibility struct {
	OccupationID int
	ContractID   int
}

// Resolver returns the local member for an external id, materializing it
// from the identity source on first use.
type Resolver struct {
	members     repository.MemberRepository
	source      IdentitySource
	eligibility Eligibility
	logger      *slog.Logger
	group       singleflight.Group
}

// NewResolver constructs a Resolver.
func NewResolver(members repository.MemberRepository, source IdentitySource, eligibility Eligibility, logger *slog.Logger) *Resolver {
	return &Resolver{members: members, source: source, eligibility: eligibility, logger: logger}
}

// Resolve looks the member up locally and falls back to fetch, validate and
// persist. Concurrent calls for the same id share one fetch.
func (r *Resolver) Resolve(ctx context.Context, externalID int) (*domain.Member, error) {
	if externalID <= 0 {
		return nil, domain.ValidationError("member external id must be positive")
	}
	member, err := r.lookup(ctx, externalID)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// The flight outlives any single caller: it runs detached from the
	// caller that started it and each caller stops waiting on its own ctx.
	flight := r.group.DoChan(strconv.Itoa(externalID), func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return r.materialize(flightCtx, externalID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		resolved := *res.Val.(*domain.Member)
		return &resolved, nil
	}
}

func (r *Resolver) lookup(ctx context.Context, externalID int) (*domain.Member, error) {
	return r.members.GetMemberByExternalID(ctx, externalID)
}

func (r *Resolver) materialize(ctx context.Context, externalID int) (*domain.Member, error) {
	// a flight that finished just before this one may already have stored it
	if member, err := r.lookup(ctx, externalID); err == nil {
		return member, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	r.logger.Info("fetching member from identity source", "external_id", externalID)
	profile, err := r.source.GetByExternalID(ctx, externalID)
	if err != nil {
		r.logger.Warn("identity source fetch failed", "external_id", externalID, "error", err)
		return nil, domain.ErrMemberFetchFailed
	}
	if err := r.validate(profile); err != nil {
		r.logger.Warn("member profile rejected", "external_id", externalID, "error", err)
		return nil, err
	}

	member := &domain.Member{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Name:       strings.TrimSpace(profile.Name),
	}
	if err := r.members.CreateMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			r.logger.Info("member resolved concurrently, reloading", "external_id", externalID)
			return r.lookup(ctx, externalID)
		}
		return nil, err
	}
	r.logger.Info("member materialized", "member_id", member.ID, "external_id", externalID)
	return member, nil
}

func (r *Resolver) validate(profile domain.MemberProfile) error {
	if profile.OccupationID == nil {
		return domain.ErrOccupationMissing
	}
	if *profile.OccupationID != r.eligibility.OccupationID {
		return domain.ErrOccupationNotPermitted
	}
	if profile.EmploymentContractID == nil {
		return domain.ErrContractMissing
	}
	if *profile.EmploymentContractID != r.eligibility.ContractID {
		return domain.ErrContractNotPermitted
	}
	return nil
}
