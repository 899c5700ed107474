package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
)

type assignmentsRepo struct {
	db dbtx
}

func (r *assignmentsRepo) GetAssignment(ctx context.Context, email string) (domain.SignatureAssignment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_email, signature_html, template_id, created_at, updated_at
		   FROM signature_assignments WHERE user_email = ?`, email)

	var (
		a                    domain.SignatureAssignment
		templateID           sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&a.UserEmail, &a.SignatureHTML, &templateID, &createdAt, &updatedAt); err != nil {
		return domain.SignatureAssignment{}, mapNotFound(err)
	}
	a.TemplateID = mapNullInt64Ptr(templateID)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func (r *assignmentsRepo) UpsertAssignment(ctx context.Context, a domain.SignatureAssignment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signature_assignments (user_email, signature_html, template_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_email) DO UPDATE
		    SET signature_html = excluded.signature_html,
		        template_id    = excluded.template_id,
		        updated_at     = excluded.updated_at`,
		a.UserEmail, a.SignatureHTML, mapOptionalInt64(a.TemplateID), toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	return err
}

func (r *assignmentsRepo) DeleteAssignment(ctx context.Context, email string) error {
	return requireAffected(r.db.ExecContext(ctx, `DELETE FROM signature_assignments WHERE user_email = ?`, email))
}
