package httpx

import (
	"net/http"

	"github.com/logicinvent/project-portfolio-api/internal/service/member"
)

func (r *Router) handleCreateMember(w http.ResponseWriter, req *http.Request) {
	var payload memberRequest
	if err := decodeJSON(req, &payload); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	created, err := r.members.Create(req.Context(), member.CreateInput{ExternalID: payload.ExternalID, Name: payload.Name})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusCreated, "member created", toMemberResponse(*created))
}

func (r *Router) handleListMembers(w http.ResponseWriter, req *http.Request) {
	page, err := pageRequest(req)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	result, err := r.members.List(req.Context(), req.URL.Query().Get("name"), page)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writePage(w, result, toMemberResponse)
}

func (r *Router) handleGetMember(w http.ResponseWriter, req *http.Request) {
	found, err := r.members.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "ok", toMemberResponse(*found))
}

func (r *Router) handleUpdateMember(w http.ResponseWriter, req *http.Request) {
	var payload memberRequest
	if err := decodeJSON(req, &payload); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	updated, err := r.members.Update(req.Context(), req.PathValue("id"), member.UpdateInput{ExternalID: payload.ExternalID, Name: payload.Name})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "member updated", toMemberResponse(*updated))
}

func (r *Router) handleDeleteMember(w http.ResponseWriter, req *http.Request) {
	if err := r.members.Delete(req.Context(), req.PathValue("id")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
