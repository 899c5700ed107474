package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(DSN(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

var epoch = time.UnixMilli(1_750_000_000_000).UTC()

func seedAdmin(t *testing.T, s *Store, id, username string, active bool) {
	t.Helper()
	require.NoError(t, s.AdminUsers().CreateAdminUser(context.Background(), domain.AdminUser{
		ID:           id,
		Username:     username,
		PasswordHash: "hash",
		Role:         domain.RoleAdmin,
		IsActive:     active,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}))
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestAdminUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.AdminUsers()

	empty, err := repo.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	seedAdmin(t, s, "01", "Root", true)
	seedAdmin(t, s, "02", "alice", false)

	t.Run("duplicate username is case insensitive", func(t *testing.T) {
		err := repo.CreateAdminUser(ctx, domain.AdminUser{
			ID: "03", Username: "root", PasswordHash: "x", Role: domain.RoleEditor, CreatedAt: epoch, UpdatedAt: epoch,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("lookup by username", func(t *testing.T) {
		u, err := repo.GetAdminUserByUsername(ctx, "ROOT")
		require.NoError(t, err)
		require.Equal(t, "01", u.ID)
		require.True(t, u.IsActive)
		require.Equal(t, epoch, u.CreatedAt)

		_, err = repo.GetAdminUserByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list ordered by username", func(t *testing.T) {
		users, err := repo.ListAdminUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		require.Equal(t, "alice", users[0].Username)
		require.False(t, users[0].IsActive)
	})

	t.Run("updates", func(t *testing.T) {
		later := epoch.Add(time.Hour)
		require.NoError(t, repo.UpdatePasswordHash(ctx, "01", "new", later))
		require.NoError(t, repo.SetActive(ctx, "02", true, later))

		u, err := repo.GetAdminUserByID(ctx, "01")
		require.NoError(t, err)
		require.Equal(t, "new", u.PasswordHash)
		require.Equal(t, later, u.UpdatedAt)

		require.ErrorIs(t, repo.SetActive(ctx, "missing", true, later), store.ErrNotFound)
	})

	t.Run("invalid role rejected by schema", func(t *testing.T) {
		err := repo.CreateAdminUser(ctx, domain.AdminUser{
			ID: "04", Username: "bad", PasswordHash: "x", Role: "superuser", CreatedAt: epoch, UpdatedAt: epoch,
		})
		require.Error(t, err)
	})
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedAdmin(t, s, "u1", "root", true)
	seedAdmin(t, s, "u2", "off", false)
	repo := s.Sessions()

	mk := func(fp, user string, expires time.Time) {
		require.NoError(t, repo.CreateSession(ctx, domain.SessionRecord{
			Fingerprint: fp, UserID: user, ExpiresAt: expires, IPAddress: "127.0.0.1", UserAgent: "test", CreatedAt: epoch,
		}))
	}
	mk("live", "u1", epoch.Add(time.Hour))
	mk("dead", "u1", epoch.Add(-time.Minute))
	mk("edge", "u1", epoch)
	mk("inactive", "u2", epoch.Add(time.Hour))

	t.Run("active join", func(t *testing.T) {
		sess, err := repo.GetActiveSession(ctx, "live", epoch)
		require.NoError(t, err)
		require.Equal(t, "root", sess.Username)
		require.Equal(t, domain.RoleAdmin, sess.Role)
		require.Equal(t, epoch.Add(time.Hour), sess.ExpiresAt)
		require.Equal(t, "127.0.0.1", sess.IPAddress)
		require.Empty(t, sess.Token)
	})

	t.Run("expired, boundary and inactive rows are invisible", func(t *testing.T) {
		for _, fp := range []string{"dead", "edge", "inactive", "unknown"} {
			_, err := repo.GetActiveSession(ctx, fp, epoch)
			require.ErrorIs(t, err, store.ErrNotFound, fp)
		}
	})

	t.Run("sweep", func(t *testing.T) {
		n, err := repo.DeleteExpiredSessions(ctx, epoch)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		n, err = repo.DeleteExpiredSessions(ctx, epoch)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteSession(ctx, "live"))
		require.NoError(t, repo.DeleteSession(ctx, "live"))
		_, err := repo.GetActiveSession(ctx, "live", epoch)
		require.ErrorIs(t, err, store.ErrNotFound)

		n, err := repo.DeleteSessionsByUser(ctx, "u2")
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("foreign key enforced", func(t *testing.T) {
		err := repo.CreateSession(ctx, domain.SessionRecord{Fingerprint: "x", UserID: "ghost", ExpiresAt: epoch, CreatedAt: epoch})
		require.Error(t, err)
	})
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Profiles()

	require.NoError(t, repo.InsertProfile(ctx, domain.Profile{
		Email: "ana@example.com", FullName: "Ana", Extension: "201", CreatedAt: epoch, UpdatedAt: epoch,
	}))
	require.NoError(t, repo.InsertProfile(ctx, domain.Profile{
		Email: "bob_x@example.com", FullName: "Bob", CreatedAt: epoch, UpdatedAt: epoch,
	}))
	require.ErrorIs(t, repo.InsertProfile(ctx, domain.Profile{Email: "ana@example.com", CreatedAt: epoch, UpdatedAt: epoch}),
		store.ErrAlreadyExists)

	t.Run("directory update keeps extension", func(t *testing.T) {
		later := epoch.Add(time.Minute)
		err := repo.UpdateDirectoryFields(ctx, "ana@example.com", domain.DirectoryFields{
			FullName: "Ana Souza", Title: "Engineer", ExternalID: "ext-1",
		}, later)
		require.NoError(t, err)

		p, err := repo.GetProfile(ctx, "ana@example.com")
		require.NoError(t, err)
		require.Equal(t, "Ana Souza", p.FullName)
		require.Equal(t, "201", p.Extension)
		require.Equal(t, epoch, p.CreatedAt)
		require.Equal(t, later, p.UpdatedAt)
	})

	t.Run("patch only touches supplied fields", func(t *testing.T) {
		ext := "305"
		title := ""
		require.NoError(t, repo.PatchProfile(ctx, "ana@example.com", domain.ProfilePatch{Extension: &ext, Title: &title}, epoch))

		p, err := repo.GetProfile(ctx, "ana@example.com")
		require.NoError(t, err)
		require.Equal(t, "305", p.Extension)
		require.Empty(t, p.Title)
		require.Equal(t, "Ana Souza", p.FullName)

		require.ErrorIs(t, repo.PatchProfile(ctx, "ghost@example.com", domain.ProfilePatch{Extension: &ext}, epoch), store.ErrNotFound)
	})

	t.Run("list and search", func(t *testing.T) {
		all, err := repo.ListProfiles(ctx, store.ProfileFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, "Ana Souza", all[0].FullName)

		hits, err := repo.ListProfiles(ctx, store.ProfileFilter{Query: "BOB"})
		require.NoError(t, err)
		require.Len(t, hits, 1)

		// underscore is literal, not a wildcard
		hits, err = repo.ListProfiles(ctx, store.ProfileFilter{Query: "b_x"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		hits, err = repo.ListProfiles(ctx, store.ProfileFilter{Query: "a_a"})
		require.NoError(t, err)
		require.Empty(t, hits)

		page, err := repo.ListProfiles(ctx, store.ProfileFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		require.Equal(t, "Bob", page[0].FullName)
	})
}

func TestTemplates_SingleDefaultIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := s.Templates()

	a, err := repo.InsertTemplate(ctx, domain.SignatureTemplate{Name: "a", HTML: "A", IsDefault: true, CreatedAt: epoch, UpdatedAt: epoch})
	require.NoError(t, err)
	b, err := repo.InsertTemplate(ctx, domain.SignatureTemplate{Name: "b", HTML: "B", CreatedAt: epoch, UpdatedAt: epoch})
	require.NoError(t, err)

	_, err = repo.InsertTemplate(ctx, domain.SignatureTemplate{Name: "c", HTML: "C", IsDefault: true, CreatedAt: epoch, UpdatedAt: epoch})
	require.ErrorIs(t, err, store.ErrAlreadyExists, "partial unique index must reject a second default")

	_, err = repo.InsertTemplate(ctx, domain.SignatureTemplate{Name: "a", HTML: "dup", CreatedAt: epoch, UpdatedAt: epoch})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	require.NoError(t, repo.ClearDefault(ctx, b, epoch))
	tb, err := repo.GetTemplate(ctx, b)
	require.NoError(t, err)
	tb.IsDefault = true
	require.NoError(t, repo.UpdateTemplate(ctx, tb))

	def, err := repo.GetDefaultTemplate(ctx)
	require.NoError(t, err)
	require.Equal(t, b, def.ID)

	list, err := repo.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].Name)
	require.Equal(t, a, list[1].ID)

	_, err = repo.GetTemplateByName(ctx, "zzz")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, repo.UpdateTemplate(ctx, domain.SignatureTemplate{ID: 999, Name: "x", UpdatedAt: epoch}), store.ErrNotFound)
}

func TestAssignments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tid, err := s.Templates().InsertTemplate(ctx, domain.SignatureTemplate{Name: "t", HTML: "T", CreatedAt: epoch, UpdatedAt: epoch})
	require.NoError(t, err)

	repo := s.Assignments()
	require.NoError(t, repo.UpsertAssignment(ctx, domain.SignatureAssignment{
		UserEmail: "ana@example.com", SignatureHTML: "T", TemplateID: &tid, CreatedAt: epoch, UpdatedAt: epoch,
	}))

	later := epoch.Add(time.Hour)
	require.NoError(t, repo.UpsertAssignment(ctx, domain.SignatureAssignment{
		UserEmail: "ana@example.com", SignatureHTML: "custom", CreatedAt: later, UpdatedAt: later,
	}))

	a, err := repo.GetAssignment(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, "custom", a.SignatureHTML)
	require.Nil(t, a.TemplateID)
	require.Equal(t, epoch, a.CreatedAt)
	require.Equal(t, later, a.UpdatedAt)

	missing := int64(999)
	err = repo.UpsertAssignment(ctx, domain.SignatureAssignment{
		UserEmail: "bob@example.com", SignatureHTML: "x", TemplateID: &missing, CreatedAt: epoch, UpdatedAt: epoch,
	})
	require.Error(t, err, "foreign key must reject unknown template")

	require.NoError(t, repo.DeleteAssignment(ctx, "ana@example.com"))
	require.ErrorIs(t, repo.DeleteAssignment(ctx, "ana@example.com"), store.ErrNotFound)
	_, err = repo.GetAssignment(ctx, "ana@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Templates().InsertTemplate(ctx, domain.SignatureTemplate{Name: "t", HTML: "T", CreatedAt: epoch, UpdatedAt: epoch})
		require.NoError(t, err)

		require.Error(t, tx.WithTx(ctx, func(store.Tx) error { return nil }), "nested tx")
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.Templates().GetTemplateByName(ctx, "t")
	require.ErrorIs(t, err, store.ErrNotFound)
}
