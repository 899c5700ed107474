package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/pkg/cryptox"
	"github.com/aussiebroadwan/mailsig/pkg/idx"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
)

const (
	minPasswordLen = 8
	maxUsernameLen = 64
)

// Operator is the actor used by the command line tool, which runs with
// direct database access and is trusted as an admin.
var Operator = domain.Session{Username: "sigadmin", Role: domain.RoleAdmin}

// AdminService manages admin accounts. Every method takes the acting session
// and enforces role checks itself.
type AdminService struct {
	Store    store.Store
	Sessions *SessionStore
	Now      func() time.Time
}

func NewAdminService(st store.Store, sessions *SessionStore) *AdminService {
	return &AdminService{Store: st, Sessions: sessions, Now: time.Now}
}

type NewAdminUser struct {
	Username string
	Password string
	Role     string
}

func requireAdmin(actor domain.Session) error {
	if actor.Role != domain.RoleAdmin {
		return ErrPermissionDenied
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLen {
		return invalidInput("password must be at least 8 characters")
	}
	return nil
}

func (s *AdminService) CreateAdminUser(ctx context.Context, actor domain.Session, in NewAdminUser) (domain.AdminUser, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.AdminUser{}, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" || len(username) > maxUsernameLen {
		return domain.AdminUser{}, invalidInput("username must be 1 to 64 characters")
	}
	if err := validatePassword(in.Password); err != nil {
		return domain.AdminUser{}, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleEditor
	}
	if !domain.ValidRole(role) {
		return domain.AdminUser{}, invalidInput("role must be admin or editor")
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.AdminUser{}, err
	}

	now := s.Now().UTC().Truncate(time.Millisecond)
	u := domain.AdminUser{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.AdminUsers().CreateAdminUser(ctx, u)
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.AdminUser{}, ErrConflict
	}
	if err != nil {
		return domain.AdminUser{}, storeErr(err)
	}

	slogx.FromContext(ctx).Info("admin user created", "user_id", u.ID, "username", u.Username, "role", u.Role, "by", actor.Username)
	return u, nil
}

func (s *AdminService) ListAdminUsers(ctx context.Context, actor domain.Session) ([]domain.AdminUser, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.Store.AdminUsers().ListAdminUsers(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

func (s *AdminService) lookup(ctx context.Context, userID string) (domain.AdminUser, error) {
	u, err := s.Store.AdminUsers().GetAdminUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AdminUser{}, ErrAdminUserNotFound
	}
	if err != nil {
		return domain.AdminUser{}, storeErr(err)
	}
	return u, nil
}

// SetPassword replaces a password and revokes the user's sessions. Admins may
// reset anyone; other users only themselves.
func (s *AdminService) SetPassword(ctx context.Context, actor domain.Session, userID, password string) error {
	if actor.UserID != userID {
		if err := requireAdmin(actor); err != nil {
			return err
		}
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if _, err := s.lookup(ctx, userID); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}
	now := s.Now().UTC().Truncate(time.Millisecond)
	if err := s.Store.AdminUsers().UpdatePasswordHash(ctx, userID, hash, now); err != nil {
		return storeErr(err)
	}

	revoked, err := s.Sessions.InvalidateUser(ctx, userID)
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("admin password changed", "user_id", userID, "sessions_revoked", revoked, "by", actor.Username)
	return nil
}

// SetPasswordByUsername is SetPassword for callers that only know the name.
func (s *AdminService) SetPasswordByUsername(ctx context.Context, actor domain.Session, username, password string) error {
	u, err := s.Store.AdminUsers().GetAdminUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return ErrAdminUserNotFound
	}
	if err != nil {
		return storeErr(err)
	}
	return s.SetPassword(ctx, actor, u.ID, password)
}

// SetActive enables or disables an account. Disabling revokes its sessions.
func (s *AdminService) SetActive(ctx context.Context, actor domain.Session, userID string, active bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if !active && actor.UserID == userID {
		return invalidInput("cannot deactivate your own account")
	}

	now := s.Now().UTC().Truncate(time.Millisecond)
	err := s.Store.AdminUsers().SetActive(ctx, userID, active, now)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAdminUserNotFound
	}
	if err != nil {
		return storeErr(err)
	}

	if !active {
		if _, err := s.Sessions.InvalidateUser(ctx, userID); err != nil {
			return err
		}
	}
	slogx.FromContext(ctx).Info("admin user active changed", "user_id", userID, "active", active, "by", actor.Username)
	return nil
}

// EnsureBootstrapAdmin creates the first admin account when none exist. It
// reports whether an account was created.
func (s *AdminService) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, nil
	}

	empty, err := s.Store.AdminUsers().IsEmpty(ctx)
	if err != nil {
		return false, storeErr(err)
	}
	if !empty {
		return false, nil
	}

	_, err = s.CreateAdminUser(ctx, Operator, NewAdminUser{Username: username, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		return false, err
	}
	return true, nil
}
