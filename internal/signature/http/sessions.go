package http

import (
	"net/http"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
)

type SessionHandler struct {
	Sessions     *service.SessionStore
	CookieSecure bool
}

func (h *SessionHandler) setCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleLogin handles POST /v1/admin/login
//
//	@Summary		Admin login
//	@Description	Checks credentials and starts a session. The token is set as the session_token cookie
//	@Description	and also returned in the body for non-browser clients.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		sigsdk.LoginRequest		true	"username and password"
//	@Success		200		{object}	sigsdk.SessionResponse	"session details"
//	@Failure		400		{object}	sigsdk.ErrorResponse	"malformed request"
//	@Failure		401		{object}	sigsdk.ErrorResponse	"invalid credentials"
//	@Failure		429		{object}	sigsdk.ErrorResponse	"too many attempts"
//	@Router			/v1/admin/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req sigsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	meta := domain.ClientMeta{IPAddress: httpx.IPKeyExtractor(r), UserAgent: r.UserAgent()}
	token, sess, err := h.Sessions.Issue(r.Context(), req.Username, req.Password, meta)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setCookie(w, token, int(sess.ExpiresAt.Sub(sess.CreatedAt).Seconds()))
	httpx.WriteJSON(w, http.StatusOK, sigsdk.SessionResponse{
		Token:     token,
		Username:  sess.Username,
		Role:      sess.Role,
		ExpiresAt: sess.ExpiresAt,
	})
}

// HandleLogout handles POST /v1/admin/logout
//
//	@Summary		Admin logout
//	@Description	Ends the caller's session. Unknown or expired tokens are accepted silently.
//	@Tags			Sessions
//	@Security		SessionAuth
//	@Success		204	"session ended"
//	@Failure		500	{object}	sigsdk.ErrorResponse	"store failure"
//	@Router			/v1/admin/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Invalidate(r.Context(), sessionToken(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("admin logged out")

	h.setCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSession handles GET /v1/admin/session
//
//	@Summary		Current session
//	@Description	Returns the user, role and expiry of the caller's session.
//	@Tags			Sessions
//	@Produce		json
//	@Security		SessionAuth
//	@Success		200	{object}	sigsdk.SessionResponse	"session details"
//	@Failure		401	{object}	sigsdk.ErrorResponse	"no valid session"
//	@Router			/v1/admin/session [get].
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Validate(r.Context(), sessionToken(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sigsdk.SessionResponse{
		Username:  sess.Username,
		Role:      sess.Role,
		ExpiresAt: sess.ExpiresAt,
	})
}
