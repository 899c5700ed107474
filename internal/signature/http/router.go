package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/metrics"
	"github.com/aussiebroadwan/mailsig/internal/signature/service"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/aussiebroadwan/mailsig/api/signature" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	gatherer     prometheus.Gatherer

	Sessions    *service.SessionStore
	Admin       *service.AdminService
	Profiles    *service.ProfileService
	Directory   *service.DirectoryService
	Assignments *service.AssignmentService
	Render      *service.RenderService

	// CookieSecure marks the session cookie Secure. Turn it off only for
	// plain HTTP development setups.
	CookieSecure bool

	// DirectoryConfigured is reported by /readyz.
	DirectoryConfigured bool
}

// NewRouter builds a router with the request logging middleware. collector
// and gatherer may be nil, in which case request metrics and /metrics are
// left out.
func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		gatherer:     gatherer,
		CookieSecure: true,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	// Innermost so that it sees r.Pattern once the mux has routed.
	if collector != nil {
		r.middlewares = append(r.middlewares, collector.HTTPMiddleware)
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerProfiles()
	r.registerAdminUsers()
	r.registerTemplates()
	r.registerAssignments()
	r.registerSignature()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			mailsig Signature Service API
//	@version		0.1.0
//	@description	Serves directory-backed HTML email signatures and the admin API that manages
//	@description	templates, assignments, profiles and admin accounts.
//	@description
//	@description				Admin endpoints accept the session_token cookie set by /v1/admin/login
//	@description				or the same token as a bearer header.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/mailsig
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	SessionAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.handler == nil {
		httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
		return
	}
	r.handler.ServeHTTP(w, req)
}

func (r *Router) authenticated(h http.Handler, extra ...httpx.Middleware) http.Handler {
	mw := []httpx.Middleware{
		httpx.AuthnMiddleware(r.authenticator()),
	}
	mw = append(mw, extra...)
	mw = append(mw, httpx.RateLimitByPrincipal(httpx.AdminLimit))
	return httpx.Chain(h, mw...)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{Sessions: r.Sessions, CookieSecure: r.CookieSecure}

	// Limited per address and username so one address cannot spread guesses
	// across many accounts within one bucket.
	r.Mux.Handle("POST /v1/admin/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.LoginLimit, "username"),
		),
	)
	r.Mux.Handle("POST /v1/admin/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.AdminLimit),
		),
	)
	r.Mux.Handle("GET /v1/admin/session", r.authenticated(http.HandlerFunc(h.HandleSession)))
}

func (r *Router) registerProfiles() {
	h := &ProfilesHandler{Profiles: r.Profiles, Directory: r.Directory}

	r.Mux.Handle("GET /v1/admin/profiles", r.authenticated(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("GET /v1/admin/profiles/{email}", r.authenticated(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("PATCH /v1/admin/profiles/{email}", r.authenticated(http.HandlerFunc(h.HandleUpdate)))
	r.Mux.Handle("POST /v1/admin/sync", r.authenticated(http.HandlerFunc(h.HandleSyncAll)))
	r.Mux.Handle("POST /v1/admin/sync/{email}", r.authenticated(http.HandlerFunc(h.HandleSyncOne)))
}

func (r *Router) registerAdminUsers() {
	h := &AdminUsersHandler{Admin: r.Admin}
	adminOnly := httpx.RequireRole(domain.RoleAdmin)

	r.Mux.Handle("GET /v1/admin/users", r.authenticated(http.HandlerFunc(h.HandleList), adminOnly))
	r.Mux.Handle("POST /v1/admin/users", r.authenticated(http.HandlerFunc(h.HandleCreate), adminOnly))
	r.Mux.Handle("PUT /v1/admin/users/{id}/active", r.authenticated(http.HandlerFunc(h.HandleSetActive), adminOnly))
	// Editors may change their own password; the service checks the target.
	r.Mux.Handle("PUT /v1/admin/users/{id}/password", r.authenticated(http.HandlerFunc(h.HandleSetPassword)))
}

func (r *Router) registerTemplates() {
	h := &TemplatesHandler{Assignments: r.Assignments}

	r.Mux.Handle("GET /v1/templates", r.authenticated(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("POST /v1/templates", r.authenticated(http.HandlerFunc(h.HandleSave)))
	r.Mux.Handle("GET /v1/templates/{id}", r.authenticated(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("PUT /v1/templates/{id}", r.authenticated(http.HandlerFunc(h.HandleUpdate)))
}

func (r *Router) registerAssignments() {
	h := &AssignmentsHandler{Assignments: r.Assignments}

	r.Mux.Handle("POST /v1/assignments", r.authenticated(http.HandlerFunc(h.HandleAssign)))
	r.Mux.Handle("GET /v1/assignments/{email}", r.authenticated(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("DELETE /v1/assignments/{email}", r.authenticated(http.HandlerFunc(h.HandleDelete)))
}

func (r *Router) registerSignature() {
	h := &SignatureHandler{Render: r.Render}

	// Polled by mail clients and add-ins, hence the generous public limit.
	r.Mux.Handle("GET /v1/signature",
		httpx.Chain(http.HandlerFunc(h.HandleSignature),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /v1/preview", r.authenticated(http.HandlerFunc(h.HandlePreview)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.DirectoryConfigured),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	if r.gatherer != nil {
		r.Mux.Handle("GET /metrics", metrics.Handler(r.gatherer))
	}
}
