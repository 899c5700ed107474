package sigsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes returned in ErrorResponse.Error.
const (
	ErrorCodeInvalidRequest        = "invalid_request"
	ErrorCodeInvalidCredentials    = "invalid_credentials"
	ErrorCodeUnauthenticated       = "unauthenticated"
	ErrorCodePermissionDenied      = "permission_denied"
	ErrorCodeTemplateNotFound      = "template_not_found"
	ErrorCodeNoDefaultTemplate     = "no_default_template"
	ErrorCodeAssignmentNotFound    = "assignment_not_found"
	ErrorCodeProfileNotFound       = "profile_not_found"
	ErrorCodeDirectoryUserNotFound = "directory_user_not_found"
	ErrorCodeAdminUserNotFound     = "admin_user_not_found"
	ErrorCodeProviderUnavailable   = "provider_unavailable"
	ErrorCodeConflict              = "conflict"
	ErrorCodeRateLimitExceeded     = "rate_limit_exceeded"
	ErrorCodeServerError           = "server_error"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Description)
}

// parseErrorResponse turns an error body into an *APIError, falling back to
// the status text when the body is not the usual JSON shape.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
