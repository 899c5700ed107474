package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/security"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
)

const maxTemplateNameLen = 128

// AssignmentService manages signature templates and per-user assignments,
// and owns the single default template rule.
type AssignmentService struct {
	Store store.Store
	Now   func() time.Time

	// Sanitizer, when set, cleans template and custom HTML before storing.
	Sanitizer security.Sanitizer
}

func NewAssignmentService(st store.Store, sanitizer security.Sanitizer) *AssignmentService {
	return &AssignmentService{Store: st, Now: time.Now, Sanitizer: sanitizer}
}

func (s *AssignmentService) now() time.Time {
	return s.Now().UTC().Truncate(time.Millisecond)
}

func (s *AssignmentService) clean(html string) string {
	if s.Sanitizer == nil {
		return html
	}
	return s.Sanitizer.HTML(html)
}

func validTemplateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalidInput("template name is required")
	}
	if len(name) > maxTemplateNameLen {
		return "", invalidInput("template name is too long")
	}
	return name, nil
}

// SaveTemplate creates the template called name or replaces its HTML and
// default flag. Making it the default clears every other default in the
// same transaction.
func (s *AssignmentService) SaveTemplate(ctx context.Context, name, html string, isDefault bool) (int64, error) {
	name, err := validTemplateName(name)
	if err != nil {
		return 0, err
	}
	html = s.clean(html)
	now := s.now()

	var id int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Templates().GetTemplateByName(ctx, name)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if isDefault {
				if err := tx.Templates().ClearDefault(ctx, 0, now); err != nil {
					return err
				}
			}
			id, err = tx.Templates().InsertTemplate(ctx, domain.SignatureTemplate{
				Name:      name,
				HTML:      html,
				IsDefault: isDefault,
				CreatedAt: now,
				UpdatedAt: now,
			})
			return err
		case err != nil:
			return err
		}

		id = existing.ID
		if isDefault {
			if err := tx.Templates().ClearDefault(ctx, existing.ID, now); err != nil {
				return err
			}
		}
		existing.HTML = html
		existing.IsDefault = isDefault
		existing.UpdatedAt = now
		return tx.Templates().UpdateTemplate(ctx, existing)
	})
	if err != nil {
		return 0, storeErr(err)
	}

	slogx.FromContext(ctx).Info("template saved", "template_id", id, "name", name, "is_default", isDefault)
	return id, nil
}

// UpdateTemplate applies a partial update to template id.
func (s *AssignmentService) UpdateTemplate(ctx context.Context, id int64, patch domain.TemplatePatch) (domain.SignatureTemplate, error) {
	if patch.Name != nil {
		name, err := validTemplateName(*patch.Name)
		if err != nil {
			return domain.SignatureTemplate{}, err
		}
		patch.Name = &name
	}
	now := s.now()

	var out domain.SignatureTemplate
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.Templates().GetTemplate(ctx, id)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			t.Name = *patch.Name
		}
		if patch.HTML != nil {
			t.HTML = s.clean(*patch.HTML)
		}
		if patch.IsDefault != nil {
			if *patch.IsDefault {
				if err := tx.Templates().ClearDefault(ctx, t.ID, now); err != nil {
					return err
				}
			}
			t.IsDefault = *patch.IsDefault
		}
		t.UpdatedAt = now

		if err := tx.Templates().UpdateTemplate(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.SignatureTemplate{}, ErrTemplateNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.SignatureTemplate{}, ErrConflict
	case err != nil:
		return domain.SignatureTemplate{}, storeErr(err)
	}
	return out, nil
}

// ListTemplates returns the default template first, then the rest by name.
func (s *AssignmentService) ListTemplates(ctx context.Context) ([]domain.SignatureTemplate, error) {
	ts, err := s.Store.Templates().ListTemplates(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return ts, nil
}

func (s *AssignmentService) GetTemplate(ctx context.Context, id int64) (domain.SignatureTemplate, error) {
	t, err := s.Store.Templates().GetTemplate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SignatureTemplate{}, ErrTemplateNotFound
	}
	if err != nil {
		return domain.SignatureTemplate{}, storeErr(err)
	}
	return t, nil
}

// Assign pins email to either custom HTML or a template's HTML. A given
// templateID must exist even alongside custom HTML, in which case it records
// the template the HTML was derived from. Blank custom HTML counts as absent.
// Nothing is written when validation fails.
func (s *AssignmentService) Assign(ctx context.Context, email string, templateID *int64, customHTML *string) (domain.SignatureAssignment, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.SignatureAssignment{}, invalidInput("email is required")
	}
	if customHTML != nil && strings.TrimSpace(*customHTML) == "" {
		customHTML = nil
	}
	if customHTML == nil && templateID == nil {
		return domain.SignatureAssignment{}, ErrTemplateNotFound
	}
	now := s.now()

	var out domain.SignatureAssignment
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var html string
		if templateID != nil {
			t, err := tx.Templates().GetTemplate(ctx, *templateID)
			if errors.Is(err, store.ErrNotFound) {
				return ErrTemplateNotFound
			}
			if err != nil {
				return err
			}
			html = t.HTML
		}
		if customHTML != nil {
			html = s.clean(*customHTML)
		}

		err := tx.Assignments().UpsertAssignment(ctx, domain.SignatureAssignment{
			UserEmail:     email,
			SignatureHTML: html,
			TemplateID:    templateID,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}

		out, err = tx.Assignments().GetAssignment(ctx, email)
		return err
	})
	switch {
	case errors.Is(err, ErrTemplateNotFound):
		return domain.SignatureAssignment{}, ErrTemplateNotFound
	case err != nil:
		return domain.SignatureAssignment{}, storeErr(err)
	}

	slogx.FromContext(ctx).Info("signature assigned", "email", email, "custom", customHTML != nil)
	return out, nil
}

func (s *AssignmentService) GetAssignment(ctx context.Context, email string) (domain.SignatureAssignment, error) {
	a, err := s.Store.Assignments().GetAssignment(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.SignatureAssignment{}, ErrAssignmentNotFound
	}
	if err != nil {
		return domain.SignatureAssignment{}, storeErr(err)
	}
	return a, nil
}

// Unassign removes the assignment so the user falls back to the default
// template.
func (s *AssignmentService) Unassign(ctx context.Context, email string) error {
	err := s.Store.Assignments().DeleteAssignment(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return ErrAssignmentNotFound
	}
	if err != nil {
		return storeErr(err)
	}
	return nil
}
