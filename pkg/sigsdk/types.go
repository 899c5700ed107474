package sigsdk

import "time"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ============================================================================
// Sessions
// ============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse describes the caller's session. Token is only set in the
// login response, for clients that cannot keep cookies.
type SessionResponse struct {
	Token     string    `json:"token,omitempty"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ============================================================================
// Profiles and directory sync
// ============================================================================

type ProfileResponse struct {
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Title      string    `json:"title"`
	Department string    `json:"department"`
	Company    string    `json:"company"`
	Phone      string    `json:"phone"`
	Extension  string    `json:"extension"`
	ExternalID string    `json:"external_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ListProfilesResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
}

// UpdateProfileRequest changes only the fields that are present.
type UpdateProfileRequest struct {
	FullName   *string `json:"full_name,omitempty"`
	Title      *string `json:"title,omitempty"`
	Department *string `json:"department,omitempty"`
	Company    *string `json:"company,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Extension  *string `json:"extension,omitempty"`
}

type SyncResponse struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// ============================================================================
// Admin users
// ============================================================================

type AdminUserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type ListAdminUsersResponse struct {
	Users []AdminUserResponse `json:"users"`
}

// CreateAdminUserRequest creates an account. Role defaults to "editor".
type CreateAdminUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type SetPasswordRequest struct {
	Password string `json:"password"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

// ============================================================================
// Templates and assignments
// ============================================================================

type TemplateResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	HTML      string    `json:"template_html"`
	IsDefault bool      `json:"is_default"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListTemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

// SaveTemplateRequest creates the named template or replaces its content.
type SaveTemplateRequest struct {
	Name      string `json:"name"`
	HTML      string `json:"template_html"`
	IsDefault bool   `json:"is_default"`
}

type UpdateTemplateRequest struct {
	Name      *string `json:"name,omitempty"`
	HTML      *string `json:"template_html,omitempty"`
	IsDefault *bool   `json:"is_default,omitempty"`
}

// AssignRequest pins a user to a template, to custom HTML, or to custom HTML
// derived from a template when both are given.
type AssignRequest struct {
	Email      string  `json:"email"`
	TemplateID *int64  `json:"template_id,omitempty"`
	CustomHTML *string `json:"custom_html,omitempty"`
}

type AssignmentResponse struct {
	Email         string    `json:"email"`
	SignatureHTML string    `json:"signature_html"`
	TemplateID    *int64    `json:"template_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ============================================================================
// Health
// ============================================================================

type HealthChecks struct {
	Database  string `json:"database"`
	Directory string `json:"directory"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
