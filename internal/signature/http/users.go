package http

import (
	"net/http"

	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
)

type AdminUsersHandler struct {
	Admin *service.AdminService
}

// HandleList handles GET /v1/admin/users
//
//	@Summary		List admin users
//	@Description	Requires the admin role.
//	@Tags			Admin Users
//	@Produce		json
//	@Security		SessionAuth
//	@Success		200	{object}	sigsdk.ListAdminUsersResponse
//	@Failure		401	{object}	sigsdk.ErrorResponse
//	@Failure		403	{object}	sigsdk.ErrorResponse
//	@Router			/v1/admin/users [get].
func (h *AdminUsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.Admin.ListAdminUsers(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := sigsdk.ListAdminUsersResponse{Users: make([]sigsdk.AdminUserResponse, len(users))}
	for i, u := range users {
		resp.Users[i] = toAdminUserResponse(u)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleCreate handles POST /v1/admin/users
//
//	@Summary		Create admin user
//	@Description	Requires the admin role. Role defaults to editor.
//	@Tags			Admin Users
//	@Accept			json
//	@Produce		json
//	@Security		SessionAuth
//	@Param			request	body		sigsdk.CreateAdminUserRequest	true	"new account"
//	@Success		201		{object}	sigsdk.AdminUserResponse
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		401		{object}	sigsdk.ErrorResponse
//	@Failure		403		{object}	sigsdk.ErrorResponse
//	@Failure		409		{object}	sigsdk.ErrorResponse	"username taken"
//	@Router			/v1/admin/users [post].
func (h *AdminUsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req sigsdk.CreateAdminUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	u, err := h.Admin.CreateAdminUser(r.Context(), actorFrom(r), service.NewAdminUser{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAdminUserResponse(u))
}

// HandleSetPassword handles PUT /v1/admin/users/{id}/password
//
//	@Summary		Set password
//	@Description	Admins may reset any account, editors only their own. Revokes the target's sessions.
//	@Tags			Admin Users
//	@Accept			json
//	@Security		SessionAuth
//	@Param			id		path	string						true	"admin user id"
//	@Param			request	body	sigsdk.SetPasswordRequest	true	"new password"
//	@Success		204		"password changed"
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		403		{object}	sigsdk.ErrorResponse
//	@Failure		404		{object}	sigsdk.ErrorResponse
//	@Router			/v1/admin/users/{id}/password [put].
func (h *AdminUsersHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req sigsdk.SetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := h.Admin.SetPassword(r.Context(), actorFrom(r), r.PathValue("id"), req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetActive handles PUT /v1/admin/users/{id}/active
//
//	@Summary		Enable or disable an account
//	@Description	Requires the admin role. Disabling revokes the account's sessions.
//	@Tags			Admin Users
//	@Accept			json
//	@Security		SessionAuth
//	@Param			id		path	string					true	"admin user id"
//	@Param			request	body	sigsdk.SetActiveRequest	true	"desired state"
//	@Success		204		"state changed"
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		403		{object}	sigsdk.ErrorResponse
//	@Failure		404		{object}	sigsdk.ErrorResponse
//	@Router			/v1/admin/users/{id}/active [put].
func (h *AdminUsersHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req sigsdk.SetActiveRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := h.Admin.SetActive(r.Context(), actorFrom(r), r.PathValue("id"), req.Active); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
