package sigsdk

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_SessionSendsBearer(t *testing.T) {
	t.Parallel()

	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/admin/login":
			var req LoginRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			if req.Password != "secret" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorCodeInvalidCredentials, ErrorDescription: "invalid credentials"})
				return
			}
			writeJSON(w, http.StatusOK, SessionResponse{Token: "tok-1", Username: req.Username, Role: "admin"})
		case "/v1/admin/session":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, SessionResponse{Username: "root", Role: "admin"})
		case "/v1/admin/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})

	_, err := client.Login(t.Context(), "root", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, ErrorCodeInvalidCredentials, apiErr.Code)
	require.Equal(t, "401 invalid_credentials: invalid credentials", apiErr.Error())

	session, err := client.Login(t.Context(), "root", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok-1", session.Token())
	require.Equal(t, "admin", session.Info().Role)

	me, err := session.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, "root", me.Username)

	require.NoError(t, session.Logout(t.Context()))
}

func TestParseErrorResponse_NonJSON(t *testing.T) {
	t.Parallel()

	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.GetSignature(t.Context(), "a@example.com")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, ErrorCodeServerError, apiErr.Code)
}

func TestSession_RequestShapes(t *testing.T) {
	t.Parallel()

	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.EscapedPath() {
		case "GET /v1/signature":
			assert.Equal(t, "a+b@example.com", r.URL.Query().Get("email"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<p>sig</p>"))
		case "GET /v1/preview":
			assert.Equal(t, "7", r.URL.Query().Get("template_id"))
			_, _ = w.Write([]byte("<p>preview</p>"))
		case "DELETE /v1/assignments/a@example.com":
			w.WriteHeader(http.StatusNoContent)
		case "PUT /v1/admin/users/u-1/active":
			var req SetActiveRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.False(t, req.Active)
			w.WriteHeader(http.StatusNoContent)
		case "GET /v1/admin/profiles":
			assert.Equal(t, "ana", r.URL.Query().Get("q"))
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, ListProfilesResponse{Profiles: []ProfileResponse{{Email: "ana@example.com"}}})
		case "POST /v1/assignments":
			var req AssignRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			writeJSON(w, http.StatusOK, AssignmentResponse{Email: req.Email, TemplateID: req.TemplateID})
		default:
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: ErrorCodeTemplateNotFound})
		}
	})

	html, err := client.GetSignature(t.Context(), "a+b@example.com")
	require.NoError(t, err)
	require.Equal(t, "<p>sig</p>", html)

	session := client.NewSessionFromToken("tok")

	html, err = session.Preview(t.Context(), 7, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "<p>preview</p>", html)

	require.NoError(t, session.Unassign(t.Context(), "a@example.com"))
	require.NoError(t, session.SetActive(t.Context(), "u-1", false))

	profiles, err := session.ListProfiles(t.Context(), "ana", 10, 0)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	id := int64(3)
	a, err := session.Assign(t.Context(), AssignRequest{Email: "a@example.com", TemplateID: &id})
	require.NoError(t, err)
	require.Equal(t, &id, a.TemplateID)

	_, err = session.GetTemplate(t.Context(), 99)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, ErrorCodeTemplateNotFound, apiErr.Code)
	require.Equal(t, "404 template_not_found", apiErr.Error())
}
