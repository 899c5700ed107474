package graph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGraph serves the token endpoint and /v1.0/users from a fixed user list,
// paging by pageSize regardless of $top.
type fakeGraph struct {
	t        *testing.T
	srv      *httptest.Server
	users    []domain.DirectoryUser
	pageSize int
	expires  int64

	tokenCalls atomic.Int32
	userCalls  atomic.Int32

	mu      sync.Mutex
	queries []map[string]string
	reject  int // number of user calls to answer with 401
}

func newFakeGraph(t *testing.T, users []domain.DirectoryUser, pageSize int) *fakeGraph {
	t.Helper()
	g := &fakeGraph{t: t, users: users, pageSize: pageSize, expires: 3600}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("client_secret") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad secret"}`))
			return
		}
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "https://graph.microsoft.com/.default", r.PostForm.Get("scope"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))

		n := g.tokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + strconv.Itoa(int(n)),
			"token_type":   "Bearer",
			"expires_in":   g.expires,
		})
	})
	mux.HandleFunc("GET /v1.0/users", func(w http.ResponseWriter, r *http.Request) {
		g.userCalls.Add(1)

		g.mu.Lock()
		if g.reject > 0 {
			g.reject--
			g.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken","message":"expired"}}`))
			return
		}
		q := r.URL.Query()
		g.queries = append(g.queries, map[string]string{
			"auth":      r.Header.Get("Authorization"),
			"$filter":   q.Get("$filter"),
			"$top":      q.Get("$top"),
			"$select":   q.Get("$select"),
			"skiptoken": q.Get("$skiptoken"),
		})
		g.mu.Unlock()

		start, _ := strconv.Atoi(q.Get("$skiptoken"))
		end := min(start+g.pageSize, len(g.users))
		body := map[string]any{"value": g.users[start:end]}
		if end < len(g.users) {
			body["@odata.nextLink"] = g.srv.URL + "/v1.0/users?$skiptoken=" + strconv.Itoa(end)
		}
		_ = json.NewEncoder(w).Encode(body)
	})

	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) setReject(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reject = n
}

func (g *fakeGraph) recorded() []map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]string(nil), g.queries...)
}

func (g *fakeGraph) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{
		TenantID:          "tenant-1",
		ClientID:          "client-1",
		ClientSecret:      "s3cret",
		BaseURL:           g.srv.URL,
		LoginURL:          g.srv.URL,
		HTTPClient:        g.srv.Client(),
		Logger:            slogx.Discard(),
		RequestsPerSecond: 1000,
		Burst:             100,
	})
	require.NoError(t, err)
	return c
}

func makeUsers(n int) []domain.DirectoryUser {
	users := make([]domain.DirectoryUser, n)
	for i := range users {
		users[i] = domain.DirectoryUser{
			ID:             "id-" + strconv.Itoa(i),
			DisplayName:    "User " + strconv.Itoa(i),
			Mail:           "user" + strconv.Itoa(i) + "@example.com",
			BusinessPhones: []string{"+1 555 0" + strconv.Itoa(i)},
		}
	}
	return users
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{TenantID: "t", ClientID: "c"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_GetUsers(t *testing.T) {
	g := newFakeGraph(t, makeUsers(3), 10)
	c := g.client(t)

	users, err := c.GetUsers(context.Background(), "mail eq 'user1@example.com'", 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "user0@example.com", users[0].Mail)
	require.Equal(t, []string{"+1 555 00"}, users[0].BusinessPhones)

	queries := g.recorded()
	require.Len(t, queries, 1)
	q := queries[0]
	require.Equal(t, "Bearer tok-1", q["auth"])
	require.Equal(t, "mail eq 'user1@example.com'", q["$filter"])
	require.Equal(t, "1", q["$top"])
	require.Equal(t, "id,displayName,mail,jobTitle,department,companyName,businessPhones", q["$select"])
}

func TestClient_FollowsNextLink(t *testing.T) {
	g := newFakeGraph(t, makeUsers(7), 3)
	c := g.client(t)

	t.Run("all pages", func(t *testing.T) {
		users, err := c.GetUsers(context.Background(), "", 0)
		require.NoError(t, err)
		require.Len(t, users, 7)
		require.Equal(t, "id-6", users[6].ID)
		require.EqualValues(t, 3, g.userCalls.Load())
	})

	t.Run("stops at limit", func(t *testing.T) {
		g.userCalls.Store(0)
		users, err := c.GetUsers(context.Background(), "", 5)
		require.NoError(t, err)
		require.Len(t, users, 5)
		require.EqualValues(t, 2, g.userCalls.Load())
	})

	require.EqualValues(t, 1, g.tokenCalls.Load())
}

func TestClient_TokenCachedUntilNearExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("reused while fresh", func(t *testing.T) {
		g := newFakeGraph(t, makeUsers(1), 10)
		c := g.client(t)

		for range 3 {
			_, err := c.GetUsers(ctx, "", 10)
			require.NoError(t, err)
		}
		require.EqualValues(t, 1, g.tokenCalls.Load())
	})

	t.Run("refetched inside the expiry skew", func(t *testing.T) {
		g := newFakeGraph(t, makeUsers(1), 10)
		g.expires = int64(tokenExpirySkew/time.Second) - 1
		c := g.client(t)

		_, err := c.GetUsers(ctx, "", 10)
		require.NoError(t, err)
		_, err = c.GetUsers(ctx, "", 10)
		require.NoError(t, err)
		require.EqualValues(t, 2, g.tokenCalls.Load())

		queries := g.recorded()
		require.Equal(t, "Bearer tok-2", queries[len(queries)-1]["auth"])
	})
}

func TestClient_RetriesOnceAfterUnauthorized(t *testing.T) {
	g := newFakeGraph(t, makeUsers(2), 10)
	c := g.client(t)

	g.setReject(1)
	users, err := c.GetUsers(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.EqualValues(t, 2, g.tokenCalls.Load())

	g.setReject(2)
	_, err = c.GetUsers(context.Background(), "", 10)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnauthorized, se.StatusCode)
	require.Equal(t, "InvalidAuthenticationToken", se.Code)
}

func TestClient_TokenRejected(t *testing.T) {
	g := newFakeGraph(t, makeUsers(1), 10)
	c, err := NewClient(Config{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "wrong",
		BaseURL:      g.srv.URL,
		LoginURL:     g.srv.URL,
		HTTPClient:   g.srv.Client(),
		Logger:       slogx.Discard(),
	})
	require.NoError(t, err)

	_, err = c.GetUsers(context.Background(), "", 1)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "invalid_client", se.Code)
	require.Zero(t, g.userCalls.Load())
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"x","token_type":"Bearer","expires_in":3600}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		TenantID: "t", ClientID: "c", ClientSecret: "s",
		BaseURL: srv.URL, LoginURL: srv.URL,
		HTTPClient: srv.Client(), Logger: slogx.Discard(),
	})
	require.NoError(t, err)

	_, err = c.GetUsers(context.Background(), "", 1)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestClient_RejectsForeignNextLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"x","token_type":"Bearer","expires_in":3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"value":[{"mail":"a@example.com"}],"@odata.nextLink":"https://evil.example/v1.0/users"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		TenantID: "t", ClientID: "c", ClientSecret: "s",
		BaseURL: srv.URL, LoginURL: srv.URL,
		HTTPClient: srv.Client(), Logger: slogx.Discard(),
	})
	require.NoError(t, err)

	_, err = c.GetUsers(context.Background(), "", 0)
	require.ErrorIs(t, err, ErrForeignLink)
}
