package domain

import "time"

// SignatureTemplate is a named HTML signature with placeholders. At most one
// template is the default.
type SignatureTemplate struct {
	ID        int64
	Name      string
	HTML      string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TemplatePatch is a partial template update; nil fields are left untouched.
type TemplatePatch struct {
	Name      *string
	HTML      *string
	IsDefault *bool
}

// SignatureAssignment pins a user to specific signature HTML. TemplateID
// records which template the HTML came from and is nil for hand-written HTML.
type SignatureAssignment struct {
	UserEmail     string
	SignatureHTML string
	TemplateID    *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
