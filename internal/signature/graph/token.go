package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// fetchSource asks the token endpoint on every call. Caching is layered on
// top with oauth2.ReuseTokenSourceWithExpiry so the refresh skew is ours.
type fetchSource struct {
	ctx context.Context
	cfg *clientcredentials.Config
}

func (s fetchSource) Token() (*oauth2.Token, error) {
	tok, err := s.cfg.Token(s.ctx)
	if err != nil {
		return nil, tokenError(err)
	}
	return tok, nil
}

func newFetchSource(cfg Config, httpClient *http.Client) fetchSource {
	return fetchSource{
		ctx: context.WithValue(context.Background(), oauth2.HTTPClient, httpClient),
		cfg: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.LoginURL + "/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token",
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
}

// accessToken returns the cached token, fetching a new one when it is missing
// or within tokenExpirySkew of expiring.
func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	ts := c.tokens
	c.mu.Unlock()

	tok, err := ts.Token()
	if err != nil {
		c.logger.Error("graph token request rejected", "err", err)
		return "", err
	}
	return tok.AccessToken, nil
}

// renewToken replaces a token Graph rejected. Concurrent callers holding the
// same rejected token share one fetch.
func (c *Client) renewToken(rejected string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, err := c.tokens.Token(); err == nil && tok.AccessToken != rejected {
		return tok.AccessToken, nil
	}

	tok, err := c.fetch.Token()
	if err != nil {
		c.logger.Error("graph token request rejected", "err", err)
		return "", err
	}
	c.tokens = oauth2.ReuseTokenSourceWithExpiry(tok, c.fetch, tokenExpirySkew)
	c.logger.Debug("graph token renewed", "expires_at", tok.Expiry)
	return tok.AccessToken, nil
}

// tokenError turns an OAuth error response into a StatusError.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return fmt.Errorf("graph token request: %w", err)
	}
	return &StatusError{
		StatusCode: re.Response.StatusCode,
		Code:       re.ErrorCode,
		Message:    re.ErrorDescription,
	}
}
