package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
)

type templatesRepo struct {
	db dbtx
}

const templateColumns = `id, name, template_html, is_default, created_at, updated_at`

func scanTemplate(row rowScanner) (domain.SignatureTemplate, error) {
	var (
		t                    domain.SignatureTemplate
		isDefault            int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.HTML, &isDefault, &createdAt, &updatedAt); err != nil {
		return domain.SignatureTemplate{}, err
	}
	t.IsDefault = isDefault != 0
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}

func (r *templatesRepo) getOne(ctx context.Context, where string, args ...any) (domain.SignatureTemplate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM signature_templates WHERE `+where, args...)
	t, err := scanTemplate(row)
	if err != nil {
		return domain.SignatureTemplate{}, mapNotFound(err)
	}
	return t, nil
}

func (r *templatesRepo) GetTemplate(ctx context.Context, id int64) (domain.SignatureTemplate, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *templatesRepo) GetTemplateByName(ctx context.Context, name string) (domain.SignatureTemplate, error) {
	return r.getOne(ctx, `name = ?`, name)
}

func (r *templatesRepo) GetDefaultTemplate(ctx context.Context) (domain.SignatureTemplate, error) {
	return r.getOne(ctx, `is_default = 1`)
}

func (r *templatesRepo) ListTemplates(ctx context.Context) ([]domain.SignatureTemplate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM signature_templates ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SignatureTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *templatesRepo) InsertTemplate(ctx context.Context, t domain.SignatureTemplate) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO signature_templates (name, template_html, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.Name, t.HTML, boolToInt(t.IsDefault), toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
	)
	if err != nil {
		return 0, mapConstraint(err)
	}
	return res.LastInsertId()
}

func (r *templatesRepo) UpdateTemplate(ctx context.Context, t domain.SignatureTemplate) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE signature_templates
		    SET name = ?, template_html = ?, is_default = ?, updated_at = ?
		  WHERE id = ?`,
		t.Name, t.HTML, boolToInt(t.IsDefault), toMillis(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return mapConstraint(err)
	}
	return requireAffected(res, nil)
}

func (r *templatesRepo) ClearDefault(ctx context.Context, exceptID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE signature_templates SET is_default = 0, updated_at = ? WHERE is_default = 1 AND id != ?`,
		toMillis(now), exceptID,
	)
	return err
}
