// Package graph is a small Microsoft Graph client covering the one call the
// signature service needs: listing users with their contact attributes.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://graph.microsoft.com"
	DefaultLoginURL = "https://login.microsoftonline.com"

	graphScope = "https://graph.microsoft.com/.default"
	userSelect = "id,displayName,mail,jobTitle,department,companyName,businessPhones"

	// maxPageSize is the largest $top Graph accepts for /users.
	maxPageSize = 999

	// Tokens are refreshed this long before Graph says they expire.
	tokenExpirySkew = 60 * time.Second

	maxErrorBody = 4 << 10
)

var (
	ErrNotConfigured = errors.New("graph: tenant, client id and client secret are required")
	ErrForeignLink   = errors.New("graph: next link points outside the configured base url")
)

// StatusError is returned for any non-2xx response from Graph or the token
// endpoint.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph: status %d", e.StatusCode)
	}
	return fmt.Sprintf("graph: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// BaseURL and LoginURL default to the public cloud endpoints.
	BaseURL  string
	LoginURL string

	HTTPClient *http.Client
	Logger     *slog.Logger

	// RequestsPerSecond paces calls to Graph. Zero means 5/s with a burst of 5.
	RequestsPerSecond float64
	Burst             int
}

// Configured reports whether credentials were supplied.
func (c Config) Configured() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Client lists directory users using the client-credentials flow. The access
// token is cached and shared by concurrent callers.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	fetch      oauth2.TokenSource

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

func NewClient(cfg Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.LoginURL = strings.TrimRight(cfg.LoginURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rps, burst := cfg.RequestsPerSecond, cfg.Burst
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 5
	}

	fetch := newFetchSource(cfg, httpClient)
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		fetch:      fetch,
		tokens:     oauth2.ReuseTokenSourceWithExpiry(nil, fetch, tokenExpirySkew),
	}, nil
}

type usersPage struct {
	Value    []domain.DirectoryUser `json:"value"`
	NextLink string                 `json:"@odata.nextLink"`
}

// GetUsers returns up to limit users matching the OData filter, following
// @odata.nextLink until the limit is reached or the pages run out. A
// non-positive limit reads every page.
func (c *Client) GetUsers(ctx context.Context, filter string, limit int) ([]domain.DirectoryUser, error) {
	top := maxPageSize
	if limit > 0 && limit < top {
		top = limit
	}

	q := url.Values{}
	if filter != "" {
		q.Set("$filter", filter)
	}
	q.Set("$top", strconv.Itoa(top))
	q.Set("$select", userSelect)
	next := c.cfg.BaseURL + "/v1.0/users?" + q.Encode()

	users := make([]domain.DirectoryUser, 0, top)
	pages := 0
	for next != "" {
		if !strings.HasPrefix(next, c.cfg.BaseURL+"/") {
			return nil, ErrForeignLink
		}

		var page usersPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		pages++

		users = append(users, page.Value...)
		if limit > 0 && len(users) >= limit {
			users = users[:limit]
			break
		}
		next = page.NextLink
	}

	c.logger.Debug("graph users fetched", "count", len(users), "pages", pages, "filtered", filter != "")
	return users, nil
}

// getJSON performs an authorised GET. A 401 drops the cached token and the
// request is retried once with a fresh one.
func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	token, err := c.accessToken()
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("graph request: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			drain(resp)
			if token, err = c.renewToken(token); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode/100 != 2 {
			err := readStatusError(resp)
			c.logger.Error("graph request failed", "status", resp.StatusCode, "err", err)
			return err
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		drain(resp)
		if err != nil {
			return fmt.Errorf("graph decode: %w", err)
		}
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

// readStatusError understands both the Graph {"error":{"code","message"}}
// shape and the OAuth {"error","error_description"} shape.
func readStatusError(resp *http.Response) error {
	defer drain(resp)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{StatusCode: resp.StatusCode}

	var graphErr struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &graphErr) == nil && graphErr.Error.Code != "" {
		se.Code, se.Message = graphErr.Error.Code, graphErr.Error.Message
		return se
	}

	var oauthErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error != "" {
		se.Code, se.Message = oauthErr.Error, oauthErr.Description
	}
	return se
}
