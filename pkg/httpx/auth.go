package httpx

import (
	"net/http"
	"slices"

	"github.com/aussiebroadwan/mailsig/pkg/slogx"
)

// Authenticator resolves the caller behind a request. Implementations return
// an error for missing, unknown or expired credentials.
type Authenticator interface {
	Authenticate(r *http.Request) (Principal, error)
}

type AuthenticatorFunc func(r *http.Request) (Principal, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (Principal, error) { return f(r) }

// AuthnMiddleware rejects requests the authenticator cannot resolve and
// stores the principal in the request context otherwise.
func AuthnMiddleware(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("authentication failed", "err", err)
				WriteError(w, http.StatusUnauthorized, "unauthenticated", "valid session required")
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = slogx.WithContext(ctx, slogx.FromContext(ctx).With("user", p.Username))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only when the principal holds one
// of the listed roles.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "unauthenticated", "valid session required")
				return
			}
			if !slices.Contains(roles, p.Role) {
				WriteError(w, http.StatusForbidden, "permission_denied", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
