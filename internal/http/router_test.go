package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/repository/memory"
	"github.com/logicinvent/project-portfolio-api/internal/service/allocation"
	"github.com/logicinvent/project-portfolio-api/internal/service/auth"
	"github.com/logicinvent/project-portfolio-api/internal/service/member"
	"github.com/logicinvent/project-portfolio-api/internal/service/project"
	"github.com/logicinvent/project-portfolio-api/internal/service/report"
	"github.com/logicinvent/project-portfolio-api/pkg/config"
)

const (
	testOccupation = 7
	testContract   = 3
	testUser       = "operator"
	testPassword   = "s3cret"
)

type stubIdentity struct{}

func (stubIdentity) GetByExternalID(_ context.Context, externalID int) (domain.MemberProfile, error) {
	if externalID >= 900 {
		return domain.MemberProfile{}, errors.New("upstream returned 404")
	}
	occupation, contract := testOccupation, testContract
	return domain.MemberProfile{
		ExternalID:           externalID,
		Name:                 "Member " + strings.Repeat("x", externalID%5),
		OccupationID:         &occupation,
		EmploymentContractID: &contract,
	}, nil
}

type response struct {
	Content    json.RawMessage `json:"content"`
	Message    string          `json:"message"`
	Status     int             `json:"status"`
	Pagination *pagination     `json:"pagination"`
	Error      string          `json:"error"`
}

func newTestRouter(t *testing.T, limits RateLimits, dbHealth func(context.Context) error) *Router {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	resolver := member.NewResolver(store, stubIdentity{}, member.Eligibility{OccupationID: testOccupation, ContractID: testContract}, log)
	authSvc, err := auth.New(config.AuthConfig{
		Username:       testUser,
		Password:       testPassword,
		Role:           "ADMIN",
		JWTSecret:      "router-test-secret",
		AccessTokenTTL: time.Minute,
		BcryptCost:     4,
	}, log)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	router := NewRouter(Deps{
		Logger:      log,
		Auth:        authSvc,
		Projects:    project.New(store, resolver, nil, log),
		Members:     member.New(store, log),
		Allocations: allocation.New(store, store, store, resolver, nil, log),
		Reports:     report.New(store, log),
		Limiter:     NewMemoryRateLimiter(),
		Limits:      limits,
		DBHealth:    dbHealth,
	})
	t.Cleanup(router.Close)
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.SetBasicAuth(testUser, testPassword)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var out response
	if rec.Code != http.StatusNoContent && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, out
}

func createProject(t *testing.T, router http.Handler, budget string) string {
	t.Helper()
	body := `{"name":"Apollo","start_date":"2024-01-01","planned_end_date":"2024-03-01","total_budget":` + budget + `,"manager_id":1,"status":"ENCERRADO"}`
	rec, resp := do(t, router, http.MethodPost, "/api/v1/projects", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created projectResponse
	if err := json.Unmarshal(resp.Content, &created); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if created.Status != string(domain.StatusEmAnalise) {
		t.Fatalf("status = %s, want EM_ANALISE", created.Status)
	}
	return created.ID
}

func TestHealthzIsPublic(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	down := newTestRouter(t, RateLimits{}, func(context.Context) error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded healthz status = %d", rec.Code)
	}
}

func TestRequestsRequireAuthentication(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("missing WWW-Authenticate header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.SetBasicAuth(testUser, "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", rec.Code)
	}
}

func TestIssuedTokenAuthorizesRequests(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	rec, resp := do(t, router, http.MethodPost, "/auth/token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d body=%s", rec.Code, rec.Body.String())
	}
	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(resp.Content, &token); err != nil || token.AccessToken == "" {
		t.Fatalf("decode token: %v (%s)", err, resp.Content)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("bearer request status = %d", rr.Code)
	}
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	id := createProject(t, router, "1000")

	rec, resp := do(t, router, http.MethodGet, "/api/v1/projects/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got projectResponse
	if err := json.Unmarshal(resp.Content, &got); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if got.RiskLevel != domain.RiskLow {
		t.Fatalf("risk = %s, want LOW", got.RiskLevel)
	}
	if got.Manager.ExternalID != 1 {
		t.Fatalf("manager external id = %d", got.Manager.ExternalID)
	}

	skip := `{"name":"Apollo","start_date":"2024-01-01","planned_end_date":"2024-03-01","total_budget":1000,"manager_id":1,"status":"INICIADO"}`
	rec, resp = do(t, router, http.MethodPut, "/api/v1/projects/"+id, skip)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("skip transition status = %d, want 422", rec.Code)
	}
	if resp.Message != domain.ErrStatusTransition.Error() {
		t.Fatalf("message = %q", resp.Message)
	}

	next := strings.Replace(skip, "INICIADO", "ANALISE_REALIZADA", 1)
	if rec, _ = do(t, router, http.MethodPut, "/api/v1/projects/"+id, next); rec.Code != http.StatusOK {
		t.Fatalf("valid transition status = %d body=%s", rec.Code, rec.Body.String())
	}

	if rec, _ = do(t, router, http.MethodDelete, "/api/v1/projects/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, resp = do(t, router, http.MethodGet, "/api/v1/projects/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
	if resp.Error != http.StatusText(http.StatusNotFound) {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestProjectValidationErrors(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	cases := map[string]string{
		"negative budget": `{"name":"A","start_date":"2024-01-01","planned_end_date":"2024-02-01","total_budget":-1,"manager_id":1}`,
		"bad date":        `{"name":"A","start_date":"01/01/2024","planned_end_date":"2024-02-01","total_budget":1,"manager_id":1}`,
		"missing name":    `{"start_date":"2024-01-01","planned_end_date":"2024-02-01","total_budget":1,"manager_id":1}`,
		"unknown status":  `{"name":"A","start_date":"2024-01-01","planned_end_date":"2024-02-01","total_budget":1,"manager_id":1,"status":"DONE"}`,
		"malformed json":  `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, resp := do(t, router, http.MethodPost, "/api/v1/projects", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
			if resp.Message == "" {
				t.Fatalf("expected a message")
			}
		})
	}
}

func TestUnknownManagerIsNotFound(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	body := `{"name":"A","start_date":"2024-01-01","planned_end_date":"2024-02-01","total_budget":1,"manager_id":901}`
	rec, _ := do(t, router, http.MethodPost, "/api/v1/projects", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAllocationEndpoints(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	id := createProject(t, router, "1000")

	body := `{"project_id":"` + id + `","member_id":42,"allocated_date":"2024-01-15"}`
	if rec, _ := do(t, router, http.MethodPost, "/api/v1/project-members", body); rec.Code != http.StatusCreated {
		t.Fatalf("allocate status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec, _ := do(t, router, http.MethodPost, "/api/v1/project-members", body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate allocate status = %d, want 409", rec.Code)
	}

	future := time.Now().UTC().AddDate(0, 0, 2).Format(time.DateOnly)
	rec, _ := do(t, router, http.MethodPost, "/api/v1/project-members", `{"project_id":"`+id+`","member_id":43,"allocated_date":"`+future+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("future allocation status = %d, want 400", rec.Code)
	}

	rec, resp := do(t, router, http.MethodGet, "/api/v1/project-members/projects/"+id+"/members/42", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get allocation status = %d", rec.Code)
	}
	var got allocationResponse
	if err := json.Unmarshal(resp.Content, &got); err != nil {
		t.Fatalf("decode allocation: %v", err)
	}
	if got.Member.ExternalID != 42 || got.AllocatedDate != "2024-01-15" {
		t.Fatalf("unexpected allocation %+v", got)
	}

	rec, resp = do(t, router, http.MethodGet, "/api/v1/project-members/projects/"+id+"?size=5", "")
	if rec.Code != http.StatusOK || resp.Pagination == nil {
		t.Fatalf("list status = %d pagination=%v", rec.Code, resp.Pagination)
	}
	if resp.Pagination.TotalElements != 1 || resp.Pagination.Size != 5 || resp.Pagination.Page != 0 {
		t.Fatalf("pagination = %+v", *resp.Pagination)
	}

	if rec, _ := do(t, router, http.MethodGet, "/api/v1/project-members/projects/"+id+"/members/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric member id status = %d", rec.Code)
	}
	if rec, _ := do(t, router, http.MethodDelete, "/api/v1/project-members/projects/"+id+"/members/77", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown member delete status = %d, want 404", rec.Code)
	}
	if rec, _ := do(t, router, http.MethodDelete, "/api/v1/project-members/projects/"+id+"/members/42", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete allocation status = %d", rec.Code)
	}
}

func TestMemberDeleteGuardedByReferences(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	createProject(t, router, "10")

	rec, resp := do(t, router, http.MethodGet, "/api/v1/members?name=member", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list members status = %d", rec.Code)
	}
	var members []memberResponse
	if err := json.Unmarshal(resp.Content, &members); err != nil || len(members) != 1 {
		t.Fatalf("members = %v err=%v", members, err)
	}
	rec, _ = do(t, router, http.MethodDelete, "/api/v1/members/"+members[0].ID, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("delete manager status = %d, want 422", rec.Code)
	}
}

func TestReportsEndpoints(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	createProject(t, router, "100.50")
	createProject(t, router, "200")

	rec, resp := do(t, router, http.MethodGet, "/api/v1/reports/projects-by-status?status=em_analise", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("projects-by-status status = %d", rec.Code)
	}
	var count struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(resp.Content, &count); err != nil || count.Count != 2 {
		t.Fatalf("count = %+v err=%v", count, err)
	}

	if rec, _ := do(t, router, http.MethodGet, "/api/v1/reports/projects-by-status?status=nope", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status = %d, want 400", rec.Code)
	}

	rec, resp = do(t, router, http.MethodGet, "/api/v1/reports/budget-by-status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("budget-by-status status = %d", rec.Code)
	}
	var totals []budgetResponse
	if err := json.Unmarshal(resp.Content, &totals); err != nil || len(totals) != 1 {
		t.Fatalf("totals = %+v err=%v", totals, err)
	}
	if totals[0].TotalBudget.String() != "300.5" {
		t.Fatalf("total = %s, want 300.5", totals[0].TotalBudget)
	}

	rec, resp = do(t, router, http.MethodGet, "/api/v1/reports/closed-projects-average-duration", "")
	if rec.Code != http.StatusOK || !strings.Contains(string(resp.Content), `"average_duration_days":0`) {
		t.Fatalf("average status = %d content=%s", rec.Code, resp.Content)
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	router := newTestRouter(t, RateLimits{Read: 1, Write: 1, Window: time.Minute}, nil)
	rec, _ := do(t, router, http.MethodGet, "/api/v1/projects", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec, _ = do(t, router, http.MethodGet, "/api/v1/projects", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("remaining header = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	router := newTestRouter(t, RateLimits{}, nil)
	rec, resp := do(t, router, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound || resp.Status != http.StatusNotFound {
		t.Fatalf("status = %d envelope=%d", rec.Code, resp.Status)
	}
}

func TestStatusForMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNegativeBudget, http.StatusBadRequest},
		{domain.ErrProjectNotFound, http.StatusNotFound},
		{domain.ErrMemberAlreadyAllocated, http.StatusConflict},
		{domain.ErrProjectNotDeletable, http.StatusUnprocessableEntity},
		{domain.ErrMemberActiveLimit, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
