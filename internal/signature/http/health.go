package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
)

// LivezHandler godoc
//
//	@Summary		Health Check Endpoint
//	@Description	Liveness probe returning status, uptime and version. Always 200 while the process runs.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	sigsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, sigsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe. Fails with 503 when the database is unreachable. The directory
//	@Description	check is informational: an unconfigured directory only disables sync.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	sigsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	sigsdk.HealthResponse	"database unreachable"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, directoryConfigured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &sigsdk.HealthChecks{Database: "ok", Directory: "ok"}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}
		if !directoryConfigured {
			checks.Directory = "disabled"
		}

		httpx.WriteJSON(w, code, sigsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
