package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
)

// ProfilesHandler serves profile browsing, manual edits and directory sync.
type ProfilesHandler struct {
	Profiles  *service.ProfileService
	Directory *service.DirectoryService
}

func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// HandleList handles GET /v1/admin/profiles
//
//	@Summary		List profiles
//	@Description	Lists profiles ordered by name. q matches email or full name.
//	@Tags			Profiles
//	@Produce		json
//	@Security		SessionAuth
//	@Param			q		query		string	false	"search text"
//	@Param			limit	query		int		false	"page size, at most 500"
//	@Param			offset	query		int		false	"rows to skip"
//	@Success		200		{object}	sigsdk.ListProfilesResponse
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		401		{object}	sigsdk.ErrorResponse
//	@Router			/v1/admin/profiles [get].
func (h *ProfilesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	offset, ok := queryInt(r, "offset")
	if !ok {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	ps, err := h.Profiles.ListProfiles(r.Context(), store.ProfileFilter{
		Query:  r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := sigsdk.ListProfilesResponse{Profiles: make([]sigsdk.ProfileResponse, len(ps))}
	for i, p := range ps {
		resp.Profiles[i] = toProfileResponse(p)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /v1/admin/profiles/{email}
//
//	@Summary		Get profile
//	@Tags			Profiles
//	@Produce		json
//	@Security		SessionAuth
//	@Param			email	path		string	true	"user email"
//	@Success		200		{object}	sigsdk.ProfileResponse
//	@Failure		401		{object}	sigsdk.ErrorResponse
//	@Failure		404		{object}	sigsdk.ErrorResponse
//	@Router			/v1/admin/profiles/{email} [get].
func (h *ProfilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.GetProfile(r.Context(), r.PathValue("email"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProfileResponse(p))
}

// HandleUpdate handles PATCH /v1/admin/profiles/{email}
//
//	@Summary		Edit profile
//	@Description	Changes the supplied fields only. Markup is stripped. Directory owned fields
//	@Description	are overwritten again by the next sync; extension is kept.
//	@Tags			Profiles
//	@Accept			json
//	@Produce		json
//	@Security		SessionAuth
//	@Param			email	path		string						true	"user email"
//	@Param			request	body		sigsdk.UpdateProfileRequest	true	"fields to change"
//	@Success		200		{object}	sigsdk.ProfileResponse
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		401		{object}	sigsdk.ErrorResponse
//	@Failure		404		{object}	sigsdk.ErrorResponse
//	@Router			/v1/admin/profiles/{email} [patch].
func (h *ProfilesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req sigsdk.UpdateProfileRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	p, err := h.Profiles.UpdateProfile(r.Context(), r.PathValue("email"), domain.ProfilePatch{
		FullName:   req.FullName,
		Title:      req.Title,
		Department: req.Department,
		Company:    req.Company,
		Phone:      req.Phone,
		Extension:  req.Extension,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProfileResponse(p))
}

// HandleSyncAll handles POST /v1/admin/sync
//
//	@Summary		Sync all profiles
//	@Description	Pulls users from the directory and reconciles them into profiles. A directory
//	@Description	outage yields an empty result rather than an error.
//	@Tags			Profiles
//	@Produce		json
//	@Security		SessionAuth
//	@Success		200	{object}	sigsdk.SyncResponse
//	@Failure		401	{object}	sigsdk.ErrorResponse
//	@Failure		500	{object}	sigsdk.ErrorResponse
//	@Router			/v1/admin/sync [post].
func (h *ProfilesHandler) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.Directory.SyncAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sigsdk.SyncResponse{
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Skipped:   res.Skipped,
	})
}

// HandleSyncOne handles POST /v1/admin/sync/{email}
//
//	@Summary		Sync one profile
//	@Tags			Profiles
//	@Produce		json
//	@Security		SessionAuth
//	@Param			email	path		string	true	"user email"
//	@Success		200		{object}	sigsdk.ProfileResponse
//	@Failure		401		{object}	sigsdk.ErrorResponse
//	@Failure		404		{object}	sigsdk.ErrorResponse	"not in the directory"
//	@Failure		503		{object}	sigsdk.ErrorResponse	"directory unavailable"
//	@Router			/v1/admin/sync/{email} [post].
func (h *ProfilesHandler) HandleSyncOne(w http.ResponseWriter, r *http.Request) {
	p, err := h.Directory.ReconcileOne(r.Context(), r.PathValue("email"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProfileResponse(p))
}
