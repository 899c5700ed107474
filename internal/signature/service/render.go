package service

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/metrics"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
)

// Placeholders understood by Render.
const (
	PlaceholderFullName   = "{{FullName}}"
	PlaceholderTitle      = "{{Title}}"
	PlaceholderDepartment = "{{Department}}"
	PlaceholderCompany    = "{{Company}}"
	PlaceholderPhone      = "{{Phone}}"
	PlaceholderExtension  = "{{Extension}}"
)

// Fields are the values substituted into a template.
type Fields struct {
	FullName   string
	Title      string
	Department string
	Company    string
	Phone      string
	Extension  string
}

func FieldsFromProfile(p domain.Profile) Fields {
	return Fields{
		FullName:   p.FullName,
		Title:      p.Title,
		Department: p.Department,
		Company:    p.Company,
		Phone:      p.Phone,
		Extension:  p.Extension,
	}
}

// FallbackFields is used when no profile exists: the local part stands in
// for the name and the domain for the company.
func FallbackFields(email string) Fields {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok {
		return Fields{FullName: email}
	}
	return Fields{FullName: local, Company: domainPart}
}

// Render replaces every occurrence of the six placeholders in one pass.
// Anything else, including unknown {{...}} tokens, is copied unchanged, and
// substituted values are never rescanned. Values are plain text and are
// HTML escaped on the way in.
func Render(tmpl string, f Fields) string {
	return strings.NewReplacer(
		PlaceholderFullName, html.EscapeString(f.FullName),
		PlaceholderTitle, html.EscapeString(f.Title),
		PlaceholderDepartment, html.EscapeString(f.Department),
		PlaceholderCompany, html.EscapeString(f.Company),
		PlaceholderPhone, html.EscapeString(f.Phone),
		PlaceholderExtension, html.EscapeString(f.Extension),
	).Replace(tmpl)
}

// RenderService resolves which template applies to a user and renders it.
type RenderService struct {
	Store   store.Store
	Metrics metrics.Recorder
}

func NewRenderService(st store.Store, rec metrics.Recorder) *RenderService {
	return &RenderService{Store: st, Metrics: metrics.OrNop(rec)}
}

// ResolveActive returns the effective template HTML for email: its
// assignment if one exists, else the default template.
func (s *RenderService) ResolveActive(ctx context.Context, email string) (string, error) {
	tmpl, _, err := s.resolve(ctx, domain.NormalizeEmail(email))
	return tmpl, err
}

func (s *RenderService) resolve(ctx context.Context, email string) (string, string, error) {
	a, err := s.Store.Assignments().GetAssignment(ctx, email)
	switch {
	case err == nil:
		return a.SignatureHTML, metrics.RenderAssigned, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", "", storeErr(err)
	}

	t, err := s.Store.Templates().GetDefaultTemplate(ctx)
	switch {
	case err == nil:
		return t.HTML, metrics.RenderDefault, nil
	case errors.Is(err, store.ErrNotFound):
		return "", metrics.RenderNone, ErrNoDefaultTemplate
	default:
		return "", "", storeErr(err)
	}
}

// GetRendered renders the effective template for email. A missing profile
// falls back to fields derived from the address; only ErrNoDefaultTemplate
// and store failures are returned.
func (s *RenderService) GetRendered(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)

	tmpl, source, err := s.resolve(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoDefaultTemplate) {
			s.Metrics.RecordRender(source, false)
		}
		return "", err
	}

	fields, fallback, err := s.fieldsFor(ctx, email)
	if err != nil {
		return "", err
	}

	s.Metrics.RecordRender(source, fallback)
	return Render(tmpl, fields), nil
}

// Preview renders a specific template against an existing profile.
func (s *RenderService) Preview(ctx context.Context, templateID int64, email string) (string, error) {
	t, err := s.Store.Templates().GetTemplate(ctx, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrTemplateNotFound
	}
	if err != nil {
		return "", storeErr(err)
	}

	p, err := s.Store.Profiles().GetProfile(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrProfileNotFound
	}
	if err != nil {
		return "", storeErr(err)
	}

	return Render(t.HTML, FieldsFromProfile(p)), nil
}

func (s *RenderService) fieldsFor(ctx context.Context, email string) (Fields, bool, error) {
	p, err := s.Store.Profiles().GetProfile(ctx, email)
	switch {
	case err == nil:
		return FieldsFromProfile(p), false, nil
	case errors.Is(err, store.ErrNotFound):
		return FallbackFields(email), true, nil
	default:
		return Fields{}, false, storeErr(err)
	}
}
