package sigsdk

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Session is an authenticated client bound to one session token.
type Session struct {
	client *Client
	token  string
	info   SessionResponse
}

// Token returns the raw session token.
func (s *Session) Token() string { return s.token }

// Info is the login response, empty for sessions built from a token.
func (s *Session) Info() SessionResponse { return s.info }

// Logout ends the session on the server.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/admin/logout", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Me returns the session as the server sees it.
func (s *Session) Me(ctx context.Context) (*SessionResponse, error) {
	var out SessionResponse
	if err := s.getJSON(ctx, "/v1/admin/session", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) getJSON(ctx context.Context, path string, out any) error {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out, http.StatusOK)
}

// sendJSON sends in as the body when non-nil. A nil out expects 204.
func (s *Session) sendJSON(ctx context.Context, method, path string, in, out any, expectedStatus int) error {
	var body io.Reader
	var headers map[string]string
	if in != nil {
		r, err := jsonBody(in)
		if err != nil {
			return err
		}
		body, headers = r, jsonHeaders
	}

	resp, err := s.doAuthRequest(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	if out == nil {
		return checkStatusNoContent(resp)
	}
	return decodeJSON(resp, out, expectedStatus)
}

// ============================================================================
// Profiles and sync
// ============================================================================

func (s *Session) ListProfiles(ctx context.Context, query string, limit, offset int) ([]ProfileResponse, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/admin/profiles"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out ListProfilesResponse
	if err := s.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

func (s *Session) GetProfile(ctx context.Context, email string) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := s.getJSON(ctx, "/v1/admin/profiles/"+url.PathEscape(email), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateProfile(ctx context.Context, email string, req UpdateProfileRequest) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := s.sendJSON(ctx, http.MethodPatch, "/v1/admin/profiles/"+url.PathEscape(email), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncAll runs a full directory sync.
func (s *Session) SyncAll(ctx context.Context) (*SyncResponse, error) {
	var out SyncResponse
	if err := s.sendJSON(ctx, http.MethodPost, "/v1/admin/sync", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncOne refreshes a single profile from the directory.
func (s *Session) SyncOne(ctx context.Context, email string) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := s.sendJSON(ctx, http.MethodPost, "/v1/admin/sync/"+url.PathEscape(email), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Admin users
// ============================================================================

func (s *Session) ListAdminUsers(ctx context.Context) ([]AdminUserResponse, error) {
	var out ListAdminUsersResponse
	if err := s.getJSON(ctx, "/v1/admin/users", &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (s *Session) CreateAdminUser(ctx context.Context, req CreateAdminUserRequest) (*AdminUserResponse, error) {
	var out AdminUserResponse
	if err := s.sendJSON(ctx, http.MethodPost, "/v1/admin/users", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) SetPassword(ctx context.Context, userID, password string) error {
	return s.sendJSON(ctx, http.MethodPut, "/v1/admin/users/"+url.PathEscape(userID)+"/password", SetPasswordRequest{Password: password}, nil, http.StatusNoContent)
}

func (s *Session) SetActive(ctx context.Context, userID string, active bool) error {
	return s.sendJSON(ctx, http.MethodPut, "/v1/admin/users/"+url.PathEscape(userID)+"/active", SetActiveRequest{Active: active}, nil, http.StatusNoContent)
}

// ============================================================================
// Templates and assignments
// ============================================================================

func (s *Session) ListTemplates(ctx context.Context) ([]TemplateResponse, error) {
	var out ListTemplatesResponse
	if err := s.getJSON(ctx, "/v1/templates", &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

func (s *Session) GetTemplate(ctx context.Context, id int64) (*TemplateResponse, error) {
	var out TemplateResponse
	if err := s.getJSON(ctx, "/v1/templates/"+strconv.FormatInt(id, 10), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveTemplate creates or replaces the template named req.Name.
func (s *Session) SaveTemplate(ctx context.Context, req SaveTemplateRequest) (*TemplateResponse, error) {
	var out TemplateResponse
	if err := s.sendJSON(ctx, http.MethodPost, "/v1/templates", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateTemplate(ctx context.Context, id int64, req UpdateTemplateRequest) (*TemplateResponse, error) {
	var out TemplateResponse
	if err := s.sendJSON(ctx, http.MethodPut, "/v1/templates/"+strconv.FormatInt(id, 10), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) Assign(ctx context.Context, req AssignRequest) (*AssignmentResponse, error) {
	var out AssignmentResponse
	if err := s.sendJSON(ctx, http.MethodPost, "/v1/assignments", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) GetAssignment(ctx context.Context, email string) (*AssignmentResponse, error) {
	var out AssignmentResponse
	if err := s.getJSON(ctx, "/v1/assignments/"+url.PathEscape(email), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) Unassign(ctx context.Context, email string) error {
	return s.sendJSON(ctx, http.MethodDelete, "/v1/assignments/"+url.PathEscape(email), nil, nil, http.StatusNoContent)
}

// Preview renders a template against a stored profile.
func (s *Session) Preview(ctx context.Context, templateID int64, email string) (string, error) {
	q := url.Values{}
	q.Set("template_id", strconv.FormatInt(templateID, 10))
	q.Set("email", email)

	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/preview?"+q.Encode(), nil, nil)
	if err != nil {
		return "", err
	}
	return readText(resp, http.StatusOK)
}
