package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
)

type adminUsersRepo struct {
	db dbtx
}

const adminUserColumns = `id, username, password_hash, role, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdminUser(row rowScanner) (domain.AdminUser, error) {
	var (
		u                    domain.AdminUser
		active               int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &active, &createdAt, &updatedAt); err != nil {
		return domain.AdminUser{}, err
	}
	u.IsActive = active != 0
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *adminUsersRepo) GetAdminUserByID(ctx context.Context, id string) (domain.AdminUser, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users WHERE id = ?`, id)
	u, err := scanAdminUser(row)
	if err != nil {
		return domain.AdminUser{}, mapNotFound(err)
	}
	return u, nil
}

func (r *adminUsersRepo) GetAdminUserByUsername(ctx context.Context, username string) (domain.AdminUser, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users WHERE username = ?`, username)
	u, err := scanAdminUser(row)
	if err != nil {
		return domain.AdminUser{}, mapNotFound(err)
	}
	return u, nil
}

func (r *adminUsersRepo) CreateAdminUser(ctx context.Context, u domain.AdminUser) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_users (`+adminUserColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Role, boolToInt(u.IsActive),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *adminUsersRepo) ListAdminUsers(ctx context.Context) ([]domain.AdminUser, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AdminUser
	for rows.Next() {
		u, err := scanAdminUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *adminUsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE admin_users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(now), id,
	))
}

func (r *adminUsersRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE admin_users SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), toMillis(now), id,
	))
}

func (r *adminUsersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
