package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so callers cannot accidentally open a transaction
// inside a transaction.
type Store interface {
	AdminUsers() AdminUsers
	Sessions() Sessions
	Profiles() Profiles
	Templates() Templates
	Assignments() Assignments

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type AdminUsers interface {
	GetAdminUserByID(ctx context.Context, id string) (domain.AdminUser, error)

	// GetAdminUserByUsername matches case-insensitively.
	GetAdminUserByUsername(ctx context.Context, username string) (domain.AdminUser, error)

	// CreateAdminUser returns ErrAlreadyExists when the username is taken.
	CreateAdminUser(ctx context.Context, u domain.AdminUser) error

	// ListAdminUsers returns every account ordered by username.
	ListAdminUsers(ctx context.Context) ([]domain.AdminUser, error)

	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error
	SetActive(ctx context.Context, id string, active bool, now time.Time) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.SessionRecord) error

	// GetActiveSession joins the session with its account and only returns a
	// row that has not expired at now and whose account is active. The
	// returned Session has no Token set.
	GetActiveSession(ctx context.Context, fingerprint string, now time.Time) (domain.Session, error)

	// DeleteSession is a no-op for unknown fingerprints.
	DeleteSession(ctx context.Context, fingerprint string) error

	DeleteSessionsByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredSessions removes rows with expires_at <= now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// ProfileFilter narrows ListProfiles. Query matches email or full name.
type ProfileFilter struct {
	Query  string
	Limit  int
	Offset int
}

type Profiles interface {
	GetProfile(ctx context.Context, email string) (domain.Profile, error)

	// ListProfiles orders by full name then email.
	ListProfiles(ctx context.Context, f ProfileFilter) ([]domain.Profile, error)

	// InsertProfile returns ErrAlreadyExists when the email is taken.
	InsertProfile(ctx context.Context, p domain.Profile) error

	// UpdateDirectoryFields overwrites the directory owned columns and
	// updated_at. Extension is left alone.
	UpdateDirectoryFields(ctx context.Context, email string, f domain.DirectoryFields, now time.Time) error

	// PatchProfile applies the non-nil fields of patch in one statement.
	PatchProfile(ctx context.Context, email string, patch domain.ProfilePatch, now time.Time) error
}

type Templates interface {
	GetTemplate(ctx context.Context, id int64) (domain.SignatureTemplate, error)
	GetTemplateByName(ctx context.Context, name string) (domain.SignatureTemplate, error)
	GetDefaultTemplate(ctx context.Context) (domain.SignatureTemplate, error)

	// ListTemplates returns the default template first, then by name.
	ListTemplates(ctx context.Context) ([]domain.SignatureTemplate, error)

	// InsertTemplate returns the new id, or ErrAlreadyExists for a taken name.
	InsertTemplate(ctx context.Context, t domain.SignatureTemplate) (int64, error)

	// UpdateTemplate writes name, html, is_default and updated_at.
	UpdateTemplate(ctx context.Context, t domain.SignatureTemplate) error

	// ClearDefault unsets is_default on every template except exceptID.
	ClearDefault(ctx context.Context, exceptID int64, now time.Time) error
}

type Assignments interface {
	GetAssignment(ctx context.Context, email string) (domain.SignatureAssignment, error)

	// UpsertAssignment inserts or replaces the assignment for a.UserEmail,
	// keeping the original created_at.
	UpsertAssignment(ctx context.Context, a domain.SignatureAssignment) error

	// DeleteAssignment returns ErrNotFound when nothing was assigned.
	DeleteAssignment(ctx context.Context, email string) error
}
