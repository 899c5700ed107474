package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrSessionNotFound     = errors.New("session_not_found")
	ErrSessionExpired      = errors.New("session_expired")
	ErrPermissionDenied    = errors.New("permission_denied")
	ErrTemplateNotFound    = errors.New("template_not_found")
	ErrNoDefaultTemplate   = errors.New("no_default_template")
	ErrAssignmentNotFound  = errors.New("assignment_not_found")
	ErrDirectoryNotFound   = errors.New("directory_user_not_found")
	ErrProviderUnavailable = errors.New("provider_unavailable")
	ErrProfileNotFound     = errors.New("profile_not_found")
	ErrAdminUserNotFound   = errors.New("admin_user_not_found")
	ErrInvalidInput        = errors.New("invalid_request")
	ErrConflict            = errors.New("conflict")
	ErrStore               = errors.New("store_error")
)

// storeErr wraps an unexpected driver error so callers can branch on ErrStore
// while the driver error stays reachable through errors.Is/As.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
