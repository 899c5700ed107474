package domain

import "time"

// Session is an authenticated admin login. Token is the raw bearer value and
// is only populated on the in-memory side; the durable row is keyed by its
// fingerprint.
type Session struct {
	Token     string
	UserID    string
	Username  string
	Role      string
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionRecord is the persisted form of a session.
type SessionRecord struct {
	Fingerprint string
	UserID      string
	ExpiresAt   time.Time
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}

// ClientMeta is what the HTTP layer knows about the caller at login.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}
