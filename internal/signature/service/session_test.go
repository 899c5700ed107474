package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/stretchr/testify/require"
)

func newSessionStore(t *testing.T) (*SessionStore, *fakeClock) {
	t.Helper()

	st := newTestStore(t)
	seedAdmin(t, st, "u-admin", "root", "correct horse", domain.RoleAdmin, true)
	seedAdmin(t, st, "u-editor", "ed", "editor pass", domain.RoleEditor, true)
	seedAdmin(t, st, "u-off", "gone", "gone pass!", domain.RoleEditor, false)

	clock := newClock()
	s := NewSessionStore(st, 0, nil)
	s.Now = clock.Now
	return s, clock
}

// sibling returns a second SessionStore over the same database with an empty
// cache, forcing the durable path.
func sibling(s *SessionStore, clock *fakeClock) *SessionStore {
	other := NewSessionStore(s.Store, s.TTL, nil)
	other.Now = clock.Now
	return other
}

func TestSessionStore_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	s, clock := newSessionStore(t)

	token, sess, err := s.Issue(ctx, "root", "correct horse", domain.ClientMeta{IPAddress: "10.0.0.1", UserAgent: "curl"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, clock.Now().Add(DefaultSessionTTL), sess.ExpiresAt)

	t.Run("cache path", func(t *testing.T) {
		got, err := s.Validate(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "root", got.Username)
		require.Equal(t, domain.RoleAdmin, got.Role)
	})

	t.Run("durable path", func(t *testing.T) {
		other := sibling(s, clock)
		got, err := other.Validate(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "root", got.Username)
		require.Equal(t, domain.RoleAdmin, got.Role)
		require.Equal(t, sess.ExpiresAt, got.ExpiresAt)
		require.Equal(t, "10.0.0.1", got.IPAddress)
		require.Equal(t, 1, other.CacheLen(), "durable hit writes through")
	})

	t.Run("username is case insensitive", func(t *testing.T) {
		_, _, err := s.Issue(ctx, "  ROOT ", "correct horse", domain.ClientMeta{})
		require.NoError(t, err)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		t2, _, err := s.Issue(ctx, "root", "correct horse", domain.ClientMeta{})
		require.NoError(t, err)
		require.NotEqual(t, token, t2)
	})
}

func TestSessionStore_IssueRejects(t *testing.T) {
	ctx := context.Background()
	s, _ := newSessionStore(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "root", "wrong horse"},
		{"unknown user", "nobody", "correct horse"},
		{"inactive user", "gone", "gone pass!"},
		{"empty username", "", "x"},
		{"empty password", "root", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := s.Issue(ctx, tt.username, tt.password, domain.ClientMeta{})
			require.ErrorIs(t, err, ErrInvalidCredentials)
			require.Equal(t, ErrInvalidCredentials.Error(), err.Error(), "same message for every failure")
			require.Empty(t, token)
		})
	}
	require.Zero(t, s.CacheLen())
}

func TestSessionStore_EmptyCredentialsBurnVerify(t *testing.T) {
	s, _ := newSessionStore(t)

	_, _, err := s.Issue(context.Background(), "  ", "", domain.ClientMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.True(t, strings.HasPrefix(s.dummyHash, "$argon2id$"), "dummy verification ran")
}

func TestSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newSessionStore(t)

	token, _, err := s.Issue(ctx, "root", "correct horse", domain.ClientMeta{})
	require.NoError(t, err)

	clock.Advance(DefaultSessionTTL - time.Millisecond)
	_, err = s.Validate(ctx, token)
	require.NoError(t, err)

	// expires_at == now counts as expired
	clock.Advance(time.Millisecond)

	t.Run("durable tier", func(t *testing.T) {
		_, err := sibling(s, clock).Validate(ctx, token)
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("cache tier evicts", func(t *testing.T) {
		_, err := s.Validate(ctx, token)
		require.ErrorIs(t, err, ErrSessionExpired)
		require.Zero(t, s.CacheLen())

		_, err = s.Validate(ctx, token)
		require.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestSessionStore_Invalidate(t *testing.T) {
	ctx := context.Background()
	s, clock := newSessionStore(t)

	token, _, err := s.Issue(ctx, "root", "correct horse", domain.ClientMeta{})
	require.NoError(t, err)
	other := sibling(s, clock)
	_, err = other.Validate(ctx, token)
	require.NoError(t, err)

	require.NoError(t, s.Invalidate(ctx, token))

	_, err = s.Validate(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = sibling(s, clock).Validate(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// Unknown and empty tokens are fine.
	require.NoError(t, s.Invalidate(ctx, token))
	require.NoError(t, s.Invalidate(ctx, ""))
}

func TestSessionStore_InvalidateUser(t *testing.T) {
	ctx := context.Background()
	s, _ := newSessionStore(t)

	var rootTokens []string
	for range 3 {
		tok, _, err := s.Issue(ctx, "root", "correct horse", domain.ClientMeta{})
		require.NoError(t, err)
		rootTokens = append(rootTokens, tok)
	}
	edTok, _, err := s.Issue(ctx, "ed", "editor pass", domain.ClientMeta{})
	require.NoError(t, err)

	n, err := s.InvalidateUser(ctx, "u-admin")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	for _, tok := range rootTokens {
		_, err := s.Validate(ctx, tok)
		require.ErrorIs(t, err, ErrSessionNotFound)
	}
	_, err = s.Validate(ctx, edTok)
	require.NoError(t, err)
}

func TestSessionStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newSessionStore(t)

	old, _, err := s.Issue(ctx, "root", "correct horse", domain.ClientMeta{})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	fresh, _, err := s.Issue(ctx, "ed", "editor pass", domain.ClientMeta{})
	require.NoError(t, err)

	clock.Advance(DefaultSessionTTL - time.Hour)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = sibling(s, clock).Validate(ctx, fresh)
	require.NoError(t, err)
	_, err = sibling(s, clock).Validate(ctx, old)
	require.ErrorIs(t, err, ErrSessionNotFound)

	require.Equal(t, 1, s.PruneCache())
	require.Equal(t, 1, s.CacheLen())
}

func TestSessionStore_LegacyHashUpgrade(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	sum := sha256.Sum256([]byte("admin123"))
	seedAdminHash(t, st, "u-legacy", "legacy", hex.EncodeToString(sum[:]), domain.RoleAdmin, true)

	s := NewSessionStore(st, time.Hour, nil)
	_, _, err := s.Issue(ctx, "legacy", "admin123", domain.ClientMeta{})
	require.NoError(t, err)

	u, err := st.AdminUsers().GetAdminUserByID(ctx, "u-legacy")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))

	// The upgraded hash still accepts the same password.
	_, _, err = s.Issue(ctx, "legacy", "admin123", domain.ClientMeta{})
	require.NoError(t, err)
	_, _, err = s.Issue(ctx, "legacy", "admin1234", domain.ClientMeta{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionStore_DeactivatedUserDurablePath(t *testing.T) {
	ctx := context.Background()
	s, clock := newSessionStore(t)

	token, _, err := s.Issue(ctx, "ed", "editor pass", domain.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, s.Store.AdminUsers().SetActive(ctx, "u-editor", false, clock.Now()))

	_, err = sibling(s, clock).Validate(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_StoreFailure(t *testing.T) {
	ctx := context.Background()
	s, _ := newSessionStore(t)
	require.NoError(t, s.Store.Close())

	_, err := s.Validate(ctx, "whatever")
	require.ErrorIs(t, err, ErrStore)

	_, _, err = s.Issue(ctx, "root", "correct horse", domain.ClientMeta{})
	require.ErrorIs(t, err, ErrStore)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newSessionStore(t)

	token, _, err := s.Issue(ctx, "root", "correct horse", domain.ClientMeta{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if _, err := s.Validate(ctx, token); err != nil {
					errs <- err
				}
				if i%4 == 0 {
					if _, err := s.Sweep(ctx); err != nil {
						errs <- err
					}
					s.PruneCache()
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

// pausingStore holds the first GetActiveSession after its row is read until
// release is closed.
type pausingStore struct {
	store.Store
	sessions *pausingSessions
}

func (p *pausingStore) Sessions() store.Sessions { return p.sessions }

type pausingSessions struct {
	store.Sessions
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingSessions) GetActiveSession(ctx context.Context, fingerprint string, now time.Time) (domain.Session, error) {
	sess, err := p.Sessions.GetActiveSession(ctx, fingerprint, now)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return sess, err
}

func TestSessionStore_InvalidateDuringDurableLookup(t *testing.T) {
	ctx := context.Background()
	s, clock := newSessionStore(t)

	token, _, err := s.Issue(ctx, "root", "correct horse", domain.ClientMeta{})
	require.NoError(t, err)

	paused := &pausingStore{
		Store: s.Store,
		sessions: &pausingSessions{
			Sessions: s.Store.Sessions(),
			read:     make(chan struct{}),
			release:  make(chan struct{}),
		},
	}
	other := NewSessionStore(paused, s.TTL, nil)
	other.Now = clock.Now

	done := make(chan error, 1)
	go func() {
		_, err := other.Validate(ctx, token)
		done <- err
	}()

	<-paused.sessions.read
	require.NoError(t, other.Invalidate(ctx, token))
	close(paused.sessions.release)

	require.ErrorIs(t, <-done, ErrSessionNotFound)
	require.Zero(t, other.CacheLen())

	_, err = other.Validate(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_InvalidateUserDuringDurableLookup(t *testing.T) {
	ctx := context.Background()
	s, clock := newSessionStore(t)

	token, _, err := s.Issue(ctx, "ed", "editor pass", domain.ClientMeta{})
	require.NoError(t, err)

	paused := &pausingStore{
		Store: s.Store,
		sessions: &pausingSessions{
			Sessions: s.Store.Sessions(),
			read:     make(chan struct{}),
			release:  make(chan struct{}),
		},
	}
	other := NewSessionStore(paused, s.TTL, nil)
	other.Now = clock.Now

	done := make(chan error, 1)
	go func() {
		_, err := other.Validate(ctx, token)
		done <- err
	}()

	<-paused.sessions.read
	n, err := other.InvalidateUser(ctx, "u-editor")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	close(paused.sessions.release)

	require.ErrorIs(t, <-done, ErrSessionNotFound)

	_, err = other.Validate(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}
