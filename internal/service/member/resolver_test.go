package member

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository/memory"
)

func intPtr(v int) *int { return &v }

type stubSource struct {
	profiles map[int]domain.MemberProfile
	err      error
	calls    atomic.Int32
	before   func()
}

func (s *stubSource) GetByExternalID(ctx context.Context, externalID int) (domain.MemberProfile, error) {
	s.calls.Add(1)
	if s.before != nil {
		s.before()
	}
	if s.err != nil {
		return domain.MemberProfile{}, s.err
	}
	p, ok := s.profiles[externalID]
	if !ok {
		return domain.MemberProfile{}, errors.New("identity request failed with status 404")
	}
	return p, nil
}

type countingStore struct {
	*memory.Store
	creates atomic.Int32
}

func (c *countingStore) CreateMember(ctx context.Context, member *domain.Member) error {
	c.creates.Add(1)
	return c.Store.CreateMember(ctx, member)
}

var eligible = Eligibility{OccupationID: 3, ContractID: 1}

func eligibleProfile(id int, name string) domain.MemberProfile {
	return domain.MemberProfile{ExternalID: id, Name: name, OccupationID: intPtr(3), EmploymentContractID: intPtr(1)}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveFetchesOnceThenUsesStore(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	source := &stubSource{profiles: map[int]domain.MemberProfile{42: eligibleProfile(42, "Ana")}}
	r := NewResolver(store, source, eligible, discardLogger())
	ctx := context.Background()

	first, err := r.Resolve(ctx, 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.ExternalID != 42 || first.Name != "Ana" || first.ID == "" {
		t.Fatalf("unexpected member: %+v", first)
	}
	if source.calls.Load() != 1 || store.creates.Load() != 1 {
		t.Fatalf("expected 1 fetch and 1 persist, got %d and %d", source.calls.Load(), store.creates.Load())
	}

	second, err := r.Resolve(ctx, 42)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same member, got %s and %s", first.ID, second.ID)
	}
	if source.calls.Load() != 1 || store.creates.Load() != 1 {
		t.Fatalf("expected no further fetch or persist, got %d and %d", source.calls.Load(), store.creates.Load())
	}
}

func TestResolveConcurrentFirstUseStoresOneMember(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	var barrier sync.WaitGroup
	barrier.Add(2)
	source := &stubSource{
		profiles: map[int]domain.MemberProfile{7: eligibleProfile(7, "Bruno")},
		before: func() {
			barrier.Done()
			done := make(chan struct{})
			go func() { barrier.Wait(); close(done) }()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
			}
		},
	}
	// separate resolvers stand in for separate processes: no shared flight
	resolvers := []*Resolver{
		NewResolver(store, source, eligible, discardLogger()),
		NewResolver(store, source, eligible, discardLogger()),
	}

	var wg sync.WaitGroup
	results := make([]*domain.Member, len(resolvers))
	errs := make([]error, len(resolvers))
	for i, r := range resolvers {
		wg.Add(1)
		go func(i int, r *Resolver) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), 7)
		}(i, r)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("resolver %d: %v", i, err)
		}
	}
	if results[0].ID != results[1].ID {
		t.Fatalf("expected one member, got %s and %s", results[0].ID, results[1].ID)
	}
	_, total, err := store.ListMembers(context.Background(), "", domain.PageRequest{Size: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly one stored member, got %d", total)
	}
	if source.calls.Load() != 2 {
		t.Fatalf("expected both resolvers to fetch, got %d", source.calls.Load())
	}
}

func TestResolveSharesInFlightFetch(t *testing.T) {
	store := memory.New()
	release := make(chan struct{})
	source := &stubSource{
		profiles: map[int]domain.MemberProfile{9: eligibleProfile(9, "Carla")},
		before:   func() { <-release },
	}
	r := NewResolver(store, source, eligible, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), 9); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := source.calls.Load(); got != 1 {
		t.Fatalf("expected a single shared fetch, got %d", got)
	}
}

func TestResolveRejectsIneligibleProfiles(t *testing.T) {
	cases := []struct {
		name    string
		profile domain.MemberProfile
		want    error
	}{
		{"occupation missing", domain.MemberProfile{Name: "x", EmploymentContractID: intPtr(1)}, domain.ErrOccupationMissing},
		{"occupation mismatch", domain.MemberProfile{Name: "x", OccupationID: intPtr(4), EmploymentContractID: intPtr(1)}, domain.ErrOccupationNotPermitted},
		{"contract missing", domain.MemberProfile{Name: "x", OccupationID: intPtr(3)}, domain.ErrContractMissing},
		{"contract mismatch", domain.MemberProfile{Name: "x", OccupationID: intPtr(3), EmploymentContractID: intPtr(2)}, domain.ErrContractNotPermitted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &countingStore{Store: memory.New()}
			source := &stubSource{profiles: map[int]domain.MemberProfile{5: tc.profile}}
			r := NewResolver(store, source, eligible, discardLogger())

			_, err := r.Resolve(context.Background(), 5)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected not found kind, got %v", err)
			}
			if store.creates.Load() != 0 {
				t.Fatal("ineligible profile must not be persisted")
			}
		})
	}
}

func TestResolveSurfacesFetchFailure(t *testing.T) {
	source := &stubSource{err: errors.New("identity request failed with status 500")}
	r := NewResolver(memory.New(), source, eligible, discardLogger())

	_, err := r.Resolve(context.Background(), 11)
	if !errors.Is(err, domain.ErrMemberFetchFailed) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
}

func TestResolveSkipsValidationForStoredMembers(t *testing.T) {
	store := memory.New()
	existing := domain.Member{ID: "m-1", ExternalID: 12, Name: "Davi"}
	if err := store.CreateMember(context.Background(), &existing); err != nil {
		t.Fatalf("seed: %v", err)
	}
	source := &stubSource{}
	r := NewResolver(store, source, eligible, discardLogger())

	got, err := r.Resolve(context.Background(), 12)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != "m-1" || source.calls.Load() != 0 {
		t.Fatalf("expected stored member without fetch, got %+v after %d calls", got, source.calls.Load())
	}
}

// gatedSource blocks every fetch until release is closed or the fetch
// context ends.
type gatedSource struct {
	profile domain.MemberProfile
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (g *gatedSource) GetByExternalID(ctx context.Context, externalID int) (domain.MemberProfile, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return g.profile, nil
	case <-ctx.Done():
		return domain.MemberProfile{}, ctx.Err()
	}
}

func TestResolveCancelledCallerDoesNotFailWaitingCaller(t *testing.T) {
	store := memory.New()
	source := &gatedSource{
		profile: eligibleProfile(11, "Caio"),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := NewResolver(store, source, eligible, discardLogger())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(firstCtx, 11)
		firstErr <- err
	}()
	select {
	case <-source.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch never started")
	}

	type result struct {
		member *domain.Member
		err    error
	}
	second := make(chan result, 1)
	go func() {
		m, err := r.Resolve(context.Background(), 11)
		second <- result{m, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled caller did not return")
	}

	close(source.release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("waiting caller failed: %v", res.err)
		}
		if res.member.ExternalID != 11 || res.member.Name != "Caio" {
			t.Fatalf("unexpected member %+v", res.member)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiting caller did not return")
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected one shared fetch, got %d", source.calls.Load())
	}
	if _, err := store.GetMemberByExternalID(context.Background(), 11); err != nil {
		t.Fatalf("member not stored: %v", err)
	}
}
