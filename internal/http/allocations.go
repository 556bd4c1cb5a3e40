package httpx

import (
	"net/http"

	"github.com/logicinvent/project-portfolio-api/internal/service/allocation"
)

func (r *Router) handleAllocate(w http.ResponseWriter, req *http.Request) {
	var payload allocationRequest
	if err := decodeJSON(req, &payload); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	created, err := r.allocations.Allocate(req.Context(), allocation.AllocateInput{
		ProjectID:        payload.ProjectID,
		MemberExternalID: payload.MemberID,
		AllocatedDate:    parseDate(payload.AllocatedDate),
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusCreated, "member allocated", toAllocationResponse(*created))
}

func (r *Router) handleListAllocations(w http.ResponseWriter, req *http.Request) {
	page, err := pageRequest(req)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	result, err := r.allocations.ListByProject(req.Context(), req.PathValue("projectId"), req.URL.Query().Get("name"), page)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writePage(w, result, toAllocationResponse)
}

func (r *Router) handleGetAllocation(w http.ResponseWriter, req *http.Request) {
	memberID, err := externalIDParam(req, "memberId")
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	found, err := r.allocations.Get(req.Context(), req.PathValue("projectId"), memberID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "ok", toAllocationResponse(*found))
}

func (r *Router) handleUpdateAllocation(w http.ResponseWriter, req *http.Request) {
	memberID, err := externalIDParam(req, "memberId")
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	var payload allocationUpdateRequest
	if err := decodeJSON(req, &payload); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	updated, err := r.allocations.Update(req.Context(), req.PathValue("projectId"), memberID, allocation.UpdateInput{
		ProjectID:        payload.ProjectID,
		MemberExternalID: payload.MemberID,
		AllocatedDate:    parseOptionalDate(payload.AllocatedDate),
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "allocation updated", toAllocationResponse(*updated))
}

func (r *Router) handleDeleteAllocation(w http.ResponseWriter, req *http.Request) {
	memberID, err := externalIDParam(req, "memberId")
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	if err := r.allocations.Delete(req.Context(), req.PathValue("projectId"), memberID); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
