package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/internal/signature/store/drivers/sqlite"
	"github.com/aussiebroadwan/mailsig/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-pepper")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "signature.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func seedAdmin(t *testing.T, st *sqlite.Store, id, username, password, role string, active bool) {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	seedAdminHash(t, st, id, username, hash, role, active)
}

func seedAdminHash(t *testing.T, st *sqlite.Store, id, username, hash, role string, active bool) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, st.AdminUsers().CreateAdminUser(context.Background(), domain.AdminUser{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

type providerCall struct {
	filter string
	limit  int
}

type fakeProvider struct {
	mu    sync.Mutex
	users []domain.DirectoryUser
	err   error
	calls []providerCall
}

func (p *fakeProvider) GetUsers(_ context.Context, filter string, limit int) ([]domain.DirectoryUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, providerCall{filter: filter, limit: limit})
	if p.err != nil {
		return nil, p.err
	}
	out := p.users
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }

var storeFilterAll = store.ProfileFilter{}
