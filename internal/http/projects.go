package httpx

import (
	"net/http"
	"strings"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/service/project"
)

func (p projectRequest) input() project.Input {
	input := project.Input{
		Name:              p.Name,
		StartDate:         parseDate(p.StartDate),
		PlannedEndDate:    parseDate(p.PlannedEndDate),
		ActualEndDate:     parseOptionalDate(p.ActualEndDate),
		Description:       p.Description,
		ManagerExternalID: p.ManagerID,
		Status:            domain.ProjectStatus(strings.ToUpper(strings.TrimSpace(p.Status))),
	}
	if p.TotalBudget != nil {
		input.TotalBudget = *p.TotalBudget
	}
	return input
}

func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) {
	var payload projectRequest
	if err := decodeJSON(req, &payload); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	proj, err := r.projects.Create(req.Context(), payload.input())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusCreated, "project created", toProjectResponse(*proj))
}

func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) {
	page, err := pageRequest(req)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	result, err := r.projects.List(req.Context(), req.URL.Query().Get("name"), page)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writePage(w, result, toProjectResponse)
}

func (r *Router) handleGetProject(w http.ResponseWriter, req *http.Request) {
	proj, err := r.projects.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "ok", toProjectResponse(*proj))
}

func (r *Router) handleUpdateProject(w http.ResponseWriter, req *http.Request) {
	var payload projectRequest
	if err := decodeJSON(req, &payload); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	if strings.TrimSpace(payload.Status) == "" {
		r.writeServiceError(w, req, domain.ValidationError("status is required"))
		return
	}
	proj, err := r.projects.Update(req.Context(), req.PathValue("id"), payload.input())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "project updated", toProjectResponse(*proj))
}

func (r *Router) handleDeleteProject(w http.ResponseWriter, req *http.Request) {
	if err := r.projects.Delete(req.Context(), req.PathValue("id")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
