package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
	"github.com/stretchr/testify/require"
)

func TestLivezAndReadyz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	live := decode[sigsdk.HealthResponse](t, rec)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)
	require.Nil(t, live.Checks)

	rec = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[sigsdk.HealthResponse](t, rec)
	require.Equal(t, &sigsdk.HealthChecks{Database: "ok", Directory: "ok"}, ready.Checks)

	require.NoError(t, ts.st.Close())
	rec = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	ready = decode[sigsdk.HealthResponse](t, rec)
	require.Equal(t, "degraded", ready.Status)
	require.True(t, strings.HasPrefix(ready.Checks.Database, "error: "))
}

func TestReadyz_DirectoryDisabled(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ReadyzHandler(time.Now(), "test", ts.st, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "disabled", decode[sigsdk.HealthResponse](t, rec).Checks.Directory)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/signature?email=a@example.com", "", nil).Code)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `route="GET /v1/signature"`)
}

func TestSwaggerServed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/v1/signature")
}
