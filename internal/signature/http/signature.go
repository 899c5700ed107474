package http

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
)

// PlaceholderHTML is served when no template applies to the user.
const PlaceholderHTML = "<html><body><p>Signature not configured for this user.</p></body></html>"

type SignatureHandler struct {
	Render *service.RenderService
}

// HandleSignature handles GET /v1/signature
//
//	@Summary		Rendered signature
//	@Description	Returns the user's signature HTML. Without a profile the address itself fills the
//	@Description	name and company; without any template a placeholder page is returned.
//	@Tags			Signature
//	@Produce		html
//	@Param			email	query		string	true	"user email"
//	@Success		200		{string}	string	"signature HTML"
//	@Failure		400		{object}	sigsdk.ErrorResponse
//	@Failure		500		{object}	sigsdk.ErrorResponse
//	@Router			/v1/signature [get].
func (h *SignatureHandler) HandleSignature(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeBadRequest(w, "email is required")
		return
	}
	if !isAddress(email) {
		writeBadRequest(w, "email is not a valid address")
		return
	}

	html, err := h.Render.GetRendered(r.Context(), email)
	if errors.Is(err, service.ErrNoDefaultTemplate) {
		httpx.WriteHTML(w, http.StatusOK, PlaceholderHTML)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteHTML(w, http.StatusOK, html)
}

// HandlePreview handles GET /v1/preview
//
//	@Summary		Preview template
//	@Description	Renders a specific template against an existing profile.
//	@Tags			Signature
//	@Produce		html
//	@Security		SessionAuth
//	@Param			template_id	query		int		true	"template id"
//	@Param			email		query		string	true	"user email"
//	@Success		200			{string}	string	"rendered HTML"
//	@Failure		400			{object}	sigsdk.ErrorResponse
//	@Failure		404			{object}	sigsdk.ErrorResponse	"template or profile not found"
//	@Router			/v1/preview [get].
func (h *SignatureHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(q.Get("template_id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "template_id must be a positive integer")
		return
	}
	email := strings.TrimSpace(q.Get("email"))
	if email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	html, err := h.Render.Preview(r.Context(), id, email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteHTML(w, http.StatusOK, html)
}

// isAddress accepts a bare addr-spec only, no display name or angle brackets.
func isAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Name == "" && addr.Address == s
}
