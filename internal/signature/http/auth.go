package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/pkg/httpx"
)

// SessionCookieName is the cookie set by login and read by every admin endpoint.
const SessionCookieName = "session_token"

var errNoSessionToken = errors.New("no session token")

// sessionToken reads the token from the session cookie, falling back to an
// Authorization bearer header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// authenticator resolves the caller through the session store.
func (r *Router) authenticator() httpx.Authenticator {
	return httpx.AuthenticatorFunc(func(req *http.Request) (httpx.Principal, error) {
		token := sessionToken(req)
		if token == "" {
			return httpx.Principal{}, errNoSessionToken
		}
		sess, err := r.Sessions.Validate(req.Context(), token)
		if err != nil {
			return httpx.Principal{}, err
		}
		return httpx.Principal{UserID: sess.UserID, Username: sess.Username, Role: sess.Role}, nil
	})
}

// actorFrom converts the request principal into the session value the
// services authorise against.
func actorFrom(r *http.Request) domain.Session {
	p, _ := httpx.PrincipalFrom(r.Context())
	return domain.Session{UserID: p.UserID, Username: p.Username, Role: p.Role}
}
