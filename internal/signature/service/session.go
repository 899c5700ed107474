package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/metrics"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/pkg/cryptox"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
)

// maxWriteThroughAttempts bounds the durable re-reads in Validate under
// revocation churn. The last read is returned uncached.
const maxWriteThroughAttempts = 3

// DefaultSessionTTL is used when NewSessionStore is given a non-positive TTL.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore issues and validates admin sessions. Sessions live in the
// durable store keyed by token fingerprint, with an in-memory cache in front
// keyed by the raw token. The cache belongs to this instance.
type SessionStore struct {
	Store   store.Store
	TTL     time.Duration
	Now     func() time.Time
	Metrics metrics.Recorder

	mu    sync.RWMutex
	cache map[string]domain.Session
	// revision increases on every revocation. A durable read only writes
	// through when no revocation happened while it was in flight.
	revision uint64

	dummyOnce sync.Once
	dummyHash string
}

func NewSessionStore(st store.Store, ttl time.Duration, rec metrics.Recorder) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		Store:   st,
		TTL:     ttl,
		Now:     time.Now,
		Metrics: metrics.OrNop(rec),
		cache:   make(map[string]domain.Session),
	}
}

func (s *SessionStore) now() time.Time {
	return s.Now().UTC().Truncate(time.Millisecond)
}

// Issue checks the credentials and starts a new session. Unknown users,
// inactive users and wrong passwords are indistinguishable to the caller.
func (s *SessionStore) Issue(ctx context.Context, username, password string, meta domain.ClientMeta) (string, domain.Session, error) {
	log := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.burnDummyVerify(password)
		s.Metrics.RecordLogin(metrics.LoginInvalid)
		return "", domain.Session{}, ErrInvalidCredentials
	}

	user, err := s.Store.AdminUsers().GetAdminUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		s.burnDummyVerify(password)
		log.Info("login failed", "username", username, "reason", "unknown_user")
		s.Metrics.RecordLogin(metrics.LoginInvalid)
		return "", domain.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		s.Metrics.RecordLogin(metrics.LoginError)
		return "", domain.Session{}, storeErr(err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) && !errors.Is(err, cryptox.ErrInvalidHash) {
			s.Metrics.RecordLogin(metrics.LoginError)
			return "", domain.Session{}, fmt.Errorf("verify password: %w", err)
		}
		if errors.Is(err, cryptox.ErrInvalidHash) {
			log.Error("stored password hash is unreadable", "user_id", user.ID, "err", err)
		}
		log.Info("login failed", "username", username, "reason", "bad_password")
		s.Metrics.RecordLogin(metrics.LoginInvalid)
		return "", domain.Session{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		log.Info("login failed", "username", username, "reason", "inactive")
		s.Metrics.RecordLogin(metrics.LoginInvalid)
		return "", domain.Session{}, ErrInvalidCredentials
	}

	now := s.now()

	if cryptox.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, password, now)
	}

	token, err := cryptox.NewSessionToken()
	if err != nil {
		s.Metrics.RecordLogin(metrics.LoginError)
		return "", domain.Session{}, fmt.Errorf("generate session token: %w", err)
	}

	sess := domain.Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: now.Add(s.TTL),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	}

	err = s.Store.Sessions().CreateSession(ctx, domain.SessionRecord{
		Fingerprint: cryptox.Fingerprint(token),
		UserID:      sess.UserID,
		ExpiresAt:   sess.ExpiresAt,
		IPAddress:   sess.IPAddress,
		UserAgent:   sess.UserAgent,
		CreatedAt:   sess.CreatedAt,
	})
	if err != nil {
		s.Metrics.RecordLogin(metrics.LoginError)
		return "", domain.Session{}, storeErr(err)
	}

	s.put(sess)
	s.Metrics.RecordLogin(metrics.LoginSuccess)
	log.Info("admin session issued", "user_id", user.ID, "expires_at", sess.ExpiresAt)
	return token, sess, nil
}

// upgradeHash replaces a legacy or outdated hash after a successful login.
// Failure only costs another upgrade attempt next time.
func (s *SessionStore) upgradeHash(ctx context.Context, userID, password string, now time.Time) {
	log := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		log.Warn("password rehash failed", "user_id", userID, "err", err)
		return
	}
	if err := s.Store.AdminUsers().UpdatePasswordHash(ctx, userID, hash, now); err != nil {
		log.Warn("password rehash not stored", "user_id", userID, "err", err)
		return
	}
	log.Info("password hash upgraded", "user_id", userID)
}

// burnDummyVerify spends roughly the same time as a real verification so
// response timing does not reveal whether a username exists.
func (s *SessionStore) burnDummyVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = cryptox.HashPassword("mailsig-dummy-password")
	})
	if s.dummyHash != "" {
		_ = cryptox.VerifyPassword(password, s.dummyHash)
	}
}

// Validate resolves a token to its session. The cache answers first; on a
// miss the durable store is consulted and a hit is written through.
func (s *SessionStore) Validate(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		s.Metrics.RecordSessionLookup(metrics.TierMiss)
		return domain.Session{}, ErrSessionNotFound
	}
	now := s.now()

	s.mu.RLock()
	sess, ok := s.cache[token]
	rev := s.revision
	s.mu.RUnlock()

	if ok {
		if sess.Expired(now) {
			s.dropExpired(token)
			s.Metrics.RecordSessionLookup(metrics.TierExpired)
			return domain.Session{}, ErrSessionExpired
		}
		s.Metrics.RecordSessionLookup(metrics.TierCache)
		return sess, nil
	}

	fp := cryptox.Fingerprint(token)
	for attempt := 0; ; attempt++ {
		sess, err := s.Store.Sessions().GetActiveSession(ctx, fp, now)
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.RecordSessionLookup(metrics.TierMiss)
			return domain.Session{}, ErrSessionNotFound
		}
		if err != nil {
			return domain.Session{}, storeErr(err)
		}
		sess.Token = token

		// A revocation landed while the row was read; the row may already be
		// gone, so read it again rather than cache it.
		next, cached := s.putIfUnchanged(sess, rev)
		if cached || attempt >= maxWriteThroughAttempts {
			s.Metrics.RecordSessionLookup(metrics.TierStore)
			return sess, nil
		}
		rev = next
	}
}

// Invalidate ends a session in both tiers. Unknown tokens are not an error.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	s.evict(token)
	err := s.Store.Sessions().DeleteSession(ctx, cryptox.Fingerprint(token))
	// Again after the delete, for lookups that read the row before it went.
	s.evict(token)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// InvalidateUser ends every session of a user and reports how many durable
// rows were removed.
func (s *SessionStore) InvalidateUser(ctx context.Context, userID string) (int64, error) {
	s.evictUser(userID)
	n, err := s.Store.Sessions().DeleteSessionsByUser(ctx, userID)
	s.evictUser(userID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// Sweep deletes durable sessions that have expired. Cache entries are left to
// expire at lookup time; see PruneCache.
func (s *SessionStore) Sweep(ctx context.Context) (int64, error) {
	n, err := s.Store.Sessions().DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, storeErr(err)
	}
	s.Metrics.RecordSessionsSwept(n)
	return n, nil
}

// PruneCache drops expired cache entries that were never looked up again and
// returns how many were removed.
func (s *SessionStore) PruneCache() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.cache {
		if sess.Expired(now) {
			delete(s.cache, token)
			removed++
		}
	}
	s.Metrics.SetCachedSessions(len(s.cache))
	return removed
}

// CacheLen reports the number of cached sessions.
func (s *SessionStore) CacheLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *SessionStore) put(sess domain.Session) {
	s.mu.Lock()
	s.cache[sess.Token] = sess
	n := len(s.cache)
	s.mu.Unlock()
	s.Metrics.SetCachedSessions(n)
}

// putIfUnchanged caches sess unless a revocation happened since rev was read.
// It returns the current revision and whether sess was cached.
func (s *SessionStore) putIfUnchanged(sess domain.Session, rev uint64) (uint64, bool) {
	s.mu.Lock()
	if s.revision != rev {
		cur := s.revision
		s.mu.Unlock()
		return cur, false
	}
	s.cache[sess.Token] = sess
	n := len(s.cache)
	s.mu.Unlock()
	s.Metrics.SetCachedSessions(n)
	return rev, true
}

func (s *SessionStore) dropExpired(token string) {
	s.mu.Lock()
	delete(s.cache, token)
	n := len(s.cache)
	s.mu.Unlock()
	s.Metrics.SetCachedSessions(n)
}

func (s *SessionStore) evict(token string) {
	s.mu.Lock()
	delete(s.cache, token)
	s.revision++
	n := len(s.cache)
	s.mu.Unlock()
	s.Metrics.SetCachedSessions(n)
}

func (s *SessionStore) evictUser(userID string) {
	s.mu.Lock()
	for token, sess := range s.cache {
		if sess.UserID == userID {
			delete(s.cache, token)
		}
	}
	s.revision++
	n := len(s.cache)
	s.mu.Unlock()
	s.Metrics.SetCachedSessions(n)
}
