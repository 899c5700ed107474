package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/metrics"
	"github.com/aussiebroadwan/mailsig/internal/signature/security"
	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/internal/signature/store/drivers/sqlite"
	"github.com/aussiebroadwan/mailsig/pkg/cryptox"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-pepper")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type stubDirectory struct {
	mu    sync.Mutex
	users []domain.DirectoryUser
	err   error
}

func (d *stubDirectory) GetUsers(_ context.Context, _ string, limit int) ([]domain.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	out := d.users
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type testServer struct {
	router    *Router
	st        *sqlite.Store
	directory *stubDirectory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "signature.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewSanitizer()
	dir := &stubDirectory{}

	sessions := service.NewSessionStore(st, time.Hour, collector)
	r := NewRouter("test", st, slogx.Discard(), collector, reg)
	r.Sessions = sessions
	r.Admin = service.NewAdminService(st, sessions)
	r.Profiles = service.NewProfileService(st, sanitizer)
	r.Directory = service.NewDirectoryService(st, dir, 0, collector)
	r.Assignments = service.NewAssignmentService(st, sanitizer)
	r.Render = service.NewRenderService(st, collector)
	r.DirectoryConfigured = true
	r.ApplyRoutes()

	ts := &testServer{router: r, st: st, directory: dir}
	ts.seedAdmin(t, "u-admin", "root", "rootpassword", domain.RoleAdmin)
	ts.seedAdmin(t, "u-editor", "ed", "editorpassword", domain.RoleEditor)
	return ts
}

func (ts *testServer) seedAdmin(t *testing.T, id, username, password, role string) {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, ts.st.AdminUsers().CreateAdminUser(context.Background(), domain.AdminUser{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func (ts *testServer) seedProfile(t *testing.T, p domain.Profile) {
	t.Helper()

	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	require.NoError(t, ts.st.Profiles().InsertProfile(context.Background(), p))
}

// do sends a request through the full middleware chain. A non-empty token is
// sent as a bearer header.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/v1/admin/login", "", sigsdk.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp sigsdk.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[sigsdk.ErrorResponse](t, rec)
	require.Equal(t, code, body.Error)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
