package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
	"github.com/stretchr/testify/require"
)

func TestAdminUsers_RequireAdminRole(t *testing.T) {
	ts := newTestServer(t)
	editor := ts.login(t, "ed", "editorpassword")

	requireError(t, ts.do(t, http.MethodGet, "/v1/admin/users", editor, nil),
		http.StatusForbidden, sigsdk.ErrorCodePermissionDenied)
	requireError(t, ts.do(t, http.MethodPost, "/v1/admin/users", editor, sigsdk.CreateAdminUserRequest{Username: "x", Password: "longenough"}),
		http.StatusForbidden, sigsdk.ErrorCodePermissionDenied)
	requireError(t, ts.do(t, http.MethodPut, "/v1/admin/users/u-admin/active", editor, sigsdk.SetActiveRequest{}),
		http.StatusForbidden, sigsdk.ErrorCodePermissionDenied)
	requireError(t, ts.do(t, http.MethodPut, "/v1/admin/users/u-admin/password", editor, sigsdk.SetPasswordRequest{Password: "takeover123"}),
		http.StatusForbidden, sigsdk.ErrorCodePermissionDenied)

	// Editors may change their own password.
	rec := ts.do(t, http.MethodPut, "/v1/admin/users/u-editor/password", editor, sigsdk.SetPasswordRequest{Password: "a-new-password"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Which revokes the session used to do it.
	require.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/v1/admin/session", editor, nil).Code)
	ts.login(t, "ed", "a-new-password")
}

func TestAdminUsers_Manage(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "root", "rootpassword")

	rec := ts.do(t, http.MethodPost, "/v1/admin/users", admin, sigsdk.CreateAdminUserRequest{Username: "maria", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[sigsdk.AdminUserResponse](t, rec)
	require.Equal(t, domain.RoleEditor, created.Role)
	require.True(t, created.IsActive)

	requireError(t, ts.do(t, http.MethodPost, "/v1/admin/users", admin, sigsdk.CreateAdminUserRequest{Username: "Maria", Password: "correct horse"}),
		http.StatusConflict, sigsdk.ErrorCodeConflict)
	requireError(t, ts.do(t, http.MethodPost, "/v1/admin/users", admin, sigsdk.CreateAdminUserRequest{Username: "short", Password: "x"}),
		http.StatusBadRequest, sigsdk.ErrorCodeInvalidRequest)

	rec = ts.do(t, http.MethodGet, "/v1/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[sigsdk.ListAdminUsersResponse](t, rec).Users, 3)

	maria := ts.login(t, "maria", "correct horse")
	rec = ts.do(t, http.MethodPut, "/v1/admin/users/"+created.ID+"/active", admin, sigsdk.SetActiveRequest{Active: false})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/v1/admin/session", maria, nil).Code)

	rec = ts.do(t, http.MethodPost, "/v1/admin/login", "", sigsdk.LoginRequest{Username: "maria", Password: "correct horse"})
	requireError(t, rec, http.StatusUnauthorized, sigsdk.ErrorCodeInvalidCredentials)

	requireError(t, ts.do(t, http.MethodPut, "/v1/admin/users/missing/active", admin, sigsdk.SetActiveRequest{Active: true}),
		http.StatusNotFound, sigsdk.ErrorCodeAdminUserNotFound)
}

func TestProfiles(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "ed", "editorpassword")
	ts.seedProfile(t, domain.Profile{Email: "ana@example.com", FullName: "Ana Lee"})
	ts.seedProfile(t, domain.Profile{Email: "bob@example.com", FullName: "Bob Ray"})

	rec := ts.do(t, http.MethodGet, "/v1/admin/profiles?q=ana", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[sigsdk.ListProfilesResponse](t, rec)
	require.Len(t, list.Profiles, 1)
	require.Equal(t, "ana@example.com", list.Profiles[0].Email)

	requireError(t, ts.do(t, http.MethodGet, "/v1/admin/profiles?limit=-1", token, nil),
		http.StatusBadRequest, sigsdk.ErrorCodeInvalidRequest)

	rec = ts.do(t, http.MethodPatch, "/v1/admin/profiles/ana@example.com", token, sigsdk.UpdateProfileRequest{
		Extension: ptr("204"),
		Title:     ptr("<i>Lead</i>"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[sigsdk.ProfileResponse](t, rec)
	require.Equal(t, "204", p.Extension)
	require.Equal(t, "Lead", p.Title)
	require.Equal(t, "Ana Lee", p.FullName)

	rec = ts.do(t, http.MethodGet, "/v1/admin/profiles/ANA@example.com", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "204", decode[sigsdk.ProfileResponse](t, rec).Extension)

	requireError(t, ts.do(t, http.MethodGet, "/v1/admin/profiles/nobody@example.com", token, nil),
		http.StatusNotFound, sigsdk.ErrorCodeProfileNotFound)
}

func TestSync(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "ed", "editorpassword")
	ts.directory.users = []domain.DirectoryUser{
		{ID: "1", DisplayName: "Ana Lee", Mail: "Ana@Example.com", JobTitle: "Engineer", BusinessPhones: []string{"555 0100"}},
		{ID: "2", DisplayName: "No Mail"},
	}

	rec := ts.do(t, http.MethodPost, "/v1/admin/sync", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, sigsdk.SyncResponse{Inserted: 1, Skipped: 1}, decode[sigsdk.SyncResponse](t, rec))

	rec = ts.do(t, http.MethodPost, "/v1/admin/sync", token, nil)
	require.Equal(t, sigsdk.SyncResponse{Unchanged: 1, Skipped: 1}, decode[sigsdk.SyncResponse](t, rec))

	rec = ts.do(t, http.MethodPost, "/v1/admin/sync/ana@example.com", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[sigsdk.ProfileResponse](t, rec)
	require.Equal(t, "Engineer", p.Title)
	require.Equal(t, "555 0100", p.Phone)

	ts.directory.users = nil
	requireError(t, ts.do(t, http.MethodPost, "/v1/admin/sync/ghost@example.com", token, nil),
		http.StatusNotFound, sigsdk.ErrorCodeDirectoryUserNotFound)

	ts.directory.err = errors.New("graph down")
	requireError(t, ts.do(t, http.MethodPost, "/v1/admin/sync/ana@example.com", token, nil),
		http.StatusServiceUnavailable, sigsdk.ErrorCodeProviderUnavailable)

	// Bulk sync degrades to an empty run.
	rec = ts.do(t, http.MethodPost, "/v1/admin/sync", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, sigsdk.SyncResponse{}, decode[sigsdk.SyncResponse](t, rec))
}
