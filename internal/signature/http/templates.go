package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
)

type TemplatesHandler struct {
	Assignments *service.AssignmentService
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// HandleList handles GET /v1/templates
//
//	@Summary		List templates
//	@Description	The default template comes first, the rest by name.
//	@Tags			Templates
//	@Produce		json
//	@Security		SessionAuth
//	@Success		200	{object}	sigsdk.ListTemplatesResponse
//	@Failure		401	{object}	sigsdk.ErrorResponse
//	@Router			/v1/templates [get].
func (h *TemplatesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ts, err := h.Assignments.ListTemplates(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := sigsdk.ListTemplatesResponse{Templates: make([]sigsdk.TemplateResponse, len(ts))}
	for i, t := range ts {
		resp.Templates[i] = toTemplateResponse(t)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/templates/{id}
//
//	@Summary		Get template
//	@Tags			Templates
//	@Produce		json
//	@Security		SessionAuth
//	@Param			id	path		int	true	"template id"
//	@Success		200	{object}	sigsdk.TemplateResponse
//	@Failure		400	{object}	sigsdk.ErrorResponse
//	@Failure		404	{object}	sigsdk.ErrorResponse
//	@Router			/v1/templates/{id} [get].
func (h *TemplatesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "template id must be a positive integer")
		return
	}

	t, err := h.Assignments.GetTemplate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toTemplateResponse(t))
}

// HandleSave handles POST /v1/templates
//
//	@Summary		Save template
//	@Description	Creates the named template or replaces its HTML. Setting is_default clears the flag
//	@Description	on every other template.
//	@Tags			Templates
//	@Accept			json
//	@Produce		json
//	@Security		SessionAuth
//	@Param			request	body		sigsdk.SaveTemplateRequest	true	"template"
//	@Success		200		{object}	sigsdk.TemplateResponse
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		401		{object}	sigsdk.ErrorResponse
//	@Router			/v1/templates [post].
func (h *TemplatesHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req sigsdk.SaveTemplateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, err := h.Assignments.SaveTemplate(r.Context(), req.Name, req.HTML, req.IsDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	t, err := h.Assignments.GetTemplate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toTemplateResponse(t))
}

// HandleUpdate handles PUT /v1/templates/{id}
//
//	@Summary		Update template
//	@Description	Changes the supplied fields only.
//	@Tags			Templates
//	@Accept			json
//	@Produce		json
//	@Security		SessionAuth
//	@Param			id		path		int								true	"template id"
//	@Param			request	body		sigsdk.UpdateTemplateRequest	true	"fields to change"
//	@Success		200		{object}	sigsdk.TemplateResponse
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		404		{object}	sigsdk.ErrorResponse
//	@Failure		409		{object}	sigsdk.ErrorResponse	"name taken"
//	@Router			/v1/templates/{id} [put].
func (h *TemplatesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "template id must be a positive integer")
		return
	}

	var req sigsdk.UpdateTemplateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	t, err := h.Assignments.UpdateTemplate(r.Context(), id, domain.TemplatePatch{
		Name:      req.Name,
		HTML:      req.HTML,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toTemplateResponse(t))
}
