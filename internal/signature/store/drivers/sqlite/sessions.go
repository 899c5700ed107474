package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.SessionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (token_hash, user_id, expires_at, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.Fingerprint, s.UserID, toMillis(s.ExpiresAt), s.IPAddress, s.UserAgent, toMillis(s.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetActiveSession(ctx context.Context, fingerprint string, now time.Time) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT s.user_id, u.username, u.role, s.expires_at, s.ip_address, s.user_agent, s.created_at
		   FROM admin_sessions s
		   JOIN admin_users u ON u.id = s.user_id
		  WHERE s.token_hash = ?
		    AND s.expires_at > ?
		    AND u.is_active = 1`,
		fingerprint, toMillis(now),
	)

	var (
		s                    domain.Session
		expiresAt, createdAt int64
	)
	if err := row.Scan(&s.UserID, &s.Username, &s.Role, &expiresAt, &s.IPAddress, &s.UserAgent, &createdAt); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.ExpiresAt = fromMillis(expiresAt)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, fingerprint string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE token_hash = ?`, fingerprint)
	return err
}

func (r *sessionsRepo) DeleteSessionsByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
