package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
)

type errorMapping struct {
	err    error
	status int
	code   string
	desc   string
}

var errorMappings = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, sigsdk.ErrorCodeInvalidRequest, ""},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, sigsdk.ErrorCodeInvalidCredentials, "invalid credentials"},
	{service.ErrSessionNotFound, http.StatusUnauthorized, sigsdk.ErrorCodeUnauthenticated, "valid session required"},
	{service.ErrSessionExpired, http.StatusUnauthorized, sigsdk.ErrorCodeUnauthenticated, "valid session required"},
	{service.ErrPermissionDenied, http.StatusForbidden, sigsdk.ErrorCodePermissionDenied, "insufficient role"},
	{service.ErrTemplateNotFound, http.StatusNotFound, sigsdk.ErrorCodeTemplateNotFound, "template not found"},
	{service.ErrNoDefaultTemplate, http.StatusNotFound, sigsdk.ErrorCodeNoDefaultTemplate, "no default template configured"},
	{service.ErrAssignmentNotFound, http.StatusNotFound, sigsdk.ErrorCodeAssignmentNotFound, "no assignment for this user"},
	{service.ErrProfileNotFound, http.StatusNotFound, sigsdk.ErrorCodeProfileNotFound, "profile not found"},
	{service.ErrDirectoryNotFound, http.StatusNotFound, sigsdk.ErrorCodeDirectoryUserNotFound, "user not found in directory"},
	{service.ErrAdminUserNotFound, http.StatusNotFound, sigsdk.ErrorCodeAdminUserNotFound, "admin user not found"},
	{service.ErrConflict, http.StatusConflict, sigsdk.ErrorCodeConflict, "name already in use"},
	{service.ErrProviderUnavailable, http.StatusServiceUnavailable, sigsdk.ErrorCodeProviderUnavailable, "directory is unavailable"},
}

// writeServiceError maps a service error onto a status and error code.
// Anything unrecognised, including store failures, becomes a logged 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		desc := m.desc
		if desc == "" {
			desc = strings.TrimPrefix(err.Error(), m.err.Error()+": ")
		}
		if m.status >= http.StatusInternalServerError {
			slogx.FromContext(r.Context()).Error("request failed", "error", err)
		}
		httpx.WriteError(w, m.status, m.code, desc)
		return
	}

	slogx.FromContext(r.Context()).Error("request failed", "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, sigsdk.ErrorCodeServerError, "internal error")
}

func writeBadRequest(w http.ResponseWriter, desc string) {
	httpx.WriteError(w, http.StatusBadRequest, sigsdk.ErrorCodeInvalidRequest, desc)
}
