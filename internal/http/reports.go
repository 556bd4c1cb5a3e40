package httpx

import (
	"net/http"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
)

func (r *Router) handleUniqueAllocatedMembers(w http.ResponseWriter, req *http.Request) {
	count, err := r.reports.UniqueAllocatedMembers(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "ok", map[string]int64{"unique_allocated_members": count})
}

func (r *Router) handleAverageClosedDuration(w http.ResponseWriter, req *http.Request) {
	days, err := r.reports.AverageClosedProjectDuration(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "ok", map[string]float64{"average_duration_days": days})
}

func (r *Router) handleBudgetByStatus(w http.ResponseWriter, req *http.Request) {
	totals, err := r.reports.BudgetByStatus(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	out := make([]budgetResponse, 0, len(totals))
	for _, total := range totals {
		out = append(out, budgetResponse{Status: string(total.Status), TotalBudget: total.Total})
	}
	writeContent(w, http.StatusOK, "ok", out)
}

func (r *Router) handleProjectsByStatus(w http.ResponseWriter, req *http.Request) {
	status, err := domain.ParseProjectStatus(req.URL.Query().Get("status"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	count, err := r.reports.ProjectsByStatus(req.Context(), status)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "ok", map[string]any{"status": status, "count": count})
}
