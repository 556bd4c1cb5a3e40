package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
)

type projectRequest struct {
	Name           string           `json:"name" validate:"required,max=200"`
	StartDate      string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	PlannedEndDate string           `json:"planned_end_date" validate:"required,datetime=2006-01-02"`
	ActualEndDate  *string          `json:"actual_end_date" validate:"omitempty,datetime=2006-01-02"`
	TotalBudget    *decimal.Decimal `json:"total_budget" validate:"required,nonnegative_decimal"`
	Description    *string          `json:"description" validate:"omitempty,max=2000"`
	ManagerID      int              `json:"manager_id" validate:"required,gt=0"`
	Status         string           `json:"status" validate:"omitempty,project_status"`
}

type allocationRequest struct {
	ProjectID     string `json:"project_id" validate:"required"`
	MemberID      int    `json:"member_id" validate:"required,gt=0"`
	AllocatedDate string `json:"allocated_date" validate:"required,datetime=2006-01-02,notfuture"`
}

type allocationUpdateRequest struct {
	ProjectID     string  `json:"project_id"`
	MemberID      int     `json:"member_id" validate:"omitempty,gt=0"`
	AllocatedDate *string `json:"allocated_date" validate:"omitempty,datetime=2006-01-02,notfuture"`
}

type memberRequest struct {
	ExternalID int    `json:"external_id" validate:"required,gt=0"`
	Name       string `json:"name" validate:"required,max=200"`
}

type memberResponse struct {
	ID         string    `json:"id"`
	ExternalID int       `json:"external_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type projectResponse struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	StartDate      string           `json:"start_date"`
	PlannedEndDate string           `json:"planned_end_date"`
	ActualEndDate  *string          `json:"actual_end_date"`
	TotalBudget    decimal.Decimal  `json:"total_budget"`
	Description    *string          `json:"description"`
	Manager        memberResponse   `json:"manager"`
	Status         string           `json:"status"`
	RiskLevel      domain.RiskLevel `json:"risk_level"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type allocationResponse struct {
	ProjectID     string         `json:"project_id"`
	ProjectName   string         `json:"project_name"`
	ProjectStatus string         `json:"project_status"`
	Member        memberResponse `json:"member"`
	AllocatedDate string         `json:"allocated_date"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type budgetResponse struct {
	Status      string          `json:"status"`
	TotalBudget decimal.Decimal `json:"total_budget"`
}

func toMemberResponse(m domain.Member) memberResponse {
	return memberResponse{
		ID:         m.ID,
		ExternalID: m.ExternalID,
		Name:       m.Name,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toProjectResponse(p domain.Project) projectResponse {
	resp := projectResponse{
		ID:             p.ID,
		Name:           p.Name,
		StartDate:      formatDate(p.StartDate),
		PlannedEndDate: formatDate(p.PlannedEndDate),
		TotalBudget:    p.TotalBudget,
		Description:    p.Description,
		Manager:        toMemberResponse(p.Manager),
		Status:         string(p.Status),
		RiskLevel:      p.Risk(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.ActualEndDate != nil {
		end := formatDate(*p.ActualEndDate)
		resp.ActualEndDate = &end
	}
	return resp
}

func toAllocationResponse(a domain.Allocation) allocationResponse {
	return allocationResponse{
		ProjectID:     a.ProjectID,
		ProjectName:   a.Project.Name,
		ProjectStatus: string(a.Project.Status),
		Member:        toMemberResponse(a.Member),
		AllocatedDate: formatDate(a.AllocatedDate),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// pageRequest reads zero-based page and size query parameters.
func pageRequest(req *http.Request) (domain.PageRequest, error) {
	query := req.URL.Query()
	page := domain.PageRequest{}
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, domain.ValidationError("page must be a non-negative integer")
		}
		page.Number = n
	}
	if raw := strings.TrimSpace(query.Get("size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return page, domain.ValidationError("size must be a positive integer")
		}
		page.Size = n
	}
	return page.Normalize(), nil
}

// externalIDParam reads a member external id from the path.
func externalIDParam(req *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(req.PathValue(name)))
	if err != nil || id <= 0 {
		return 0, domain.ValidationError(name + " must be a positive integer")
	}
	return id, nil
}
