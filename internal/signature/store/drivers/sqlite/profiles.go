package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
)

type profilesRepo struct {
	db dbtx
}

const profileColumns = `email, full_name, title, department, company, phone, extension, external_id, created_at, updated_at`

func scanProfile(row rowScanner) (domain.Profile, error) {
	var (
		p                    domain.Profile
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&p.Email, &p.FullName, &p.Title, &p.Department, &p.Company,
		&p.Phone, &p.Extension, &p.ExternalID, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func (r *profilesRepo) GetProfile(ctx context.Context, email string) (domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = ?`, email)
	p, err := scanProfile(row)
	if err != nil {
		return domain.Profile{}, mapNotFound(err)
	}
	return p, nil
}

func (r *profilesRepo) ListProfiles(ctx context.Context, f store.ProfileFilter) ([]domain.Profile, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(f.Query))) + "%"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles
		  WHERE email LIKE ?1 ESCAPE '\' OR lower(full_name) LIKE ?1 ESCAPE '\'
		  ORDER BY full_name, email
		  LIMIT ?2 OFFSET ?3`,
		pattern, limit, max(f.Offset, 0),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *profilesRepo) InsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Email, p.FullName, p.Title, p.Department, p.Company,
		p.Phone, p.Extension, p.ExternalID, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *profilesRepo) UpdateDirectoryFields(ctx context.Context, email string, f domain.DirectoryFields, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE profiles
		    SET full_name = ?, title = ?, department = ?, company = ?, phone = ?, external_id = ?, updated_at = ?
		  WHERE email = ?`,
		f.FullName, f.Title, f.Department, f.Company, f.Phone, f.ExternalID, toMillis(now), email,
	))
}

func (r *profilesRepo) PatchProfile(ctx context.Context, email string, p domain.ProfilePatch, now time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE profiles
		    SET full_name  = COALESCE(?, full_name),
		        title      = COALESCE(?, title),
		        department = COALESCE(?, department),
		        company    = COALESCE(?, company),
		        phone      = COALESCE(?, phone),
		        extension  = COALESCE(?, extension),
		        updated_at = ?
		  WHERE email = ?`,
		mapOptionalString(p.FullName),
		mapOptionalString(p.Title),
		mapOptionalString(p.Department),
		mapOptionalString(p.Company),
		mapOptionalString(p.Phone),
		mapOptionalString(p.Extension),
		toMillis(now),
		email,
	))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
