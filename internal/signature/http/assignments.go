package http

import (
	"net/http"

	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
)

type AssignmentsHandler struct {
	Assignments *service.AssignmentService
}

// HandleAssign handles POST /v1/assignments
//
//	@Summary		Assign signature
//	@Description	Pins a user to a template's HTML or to custom HTML. A template_id given alongside
//	@Description	custom_html must still exist and is recorded as the source.
//	@Tags			Assignments
//	@Accept			json
//	@Produce		json
//	@Security		SessionAuth
//	@Param			request	body		sigsdk.AssignRequest	true	"assignment"
//	@Success		200		{object}	sigsdk.AssignmentResponse
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		404		{object}	sigsdk.ErrorResponse	"template not found"
//	@Router			/v1/assignments [post].
func (h *AssignmentsHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	var req sigsdk.AssignRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	a, err := h.Assignments.Assign(r.Context(), req.Email, req.TemplateID, req.CustomHTML)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAssignmentResponse(a))
}

// HandleGet handles GET /v1/assignments/{email}
//
//	@Summary		Get assignment
//	@Tags			Assignments
//	@Produce		json
//	@Security		SessionAuth
//	@Param			email	path		string	true	"user email"
//	@Success		200		{object}	sigsdk.AssignmentResponse
//	@Failure		404		{object}	sigsdk.ErrorResponse
//	@Router			/v1/assignments/{email} [get].
func (h *AssignmentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.Assignments.GetAssignment(r.Context(), r.PathValue("email"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAssignmentResponse(a))
}

// HandleDelete handles DELETE /v1/assignments/{email}
//
//	@Summary		Remove assignment
//	@Description	The user falls back to the default template.
//	@Tags			Assignments
//	@Security		SessionAuth
//	@Param			email	path	string	true	"user email"
//	@Success		204		"assignment removed"
//	@Failure		404		{object}	sigsdk.ErrorResponse
//	@Router			/v1/assignments/{email} [delete].
func (h *AssignmentsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Assignments.Unassign(r.Context(), r.PathValue("email")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
