package domain

import (
	"strings"
	"time"
)

// Profile holds the attributes merged into a user's signature.
type Profile struct {
	Email      string
	FullName   string
	Title      string
	Department string
	Company    string
	Phone      string
	Extension  string
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProfilePatch is a partial update; nil fields are left untouched.
type ProfilePatch struct {
	FullName   *string
	Title      *string
	Department *string
	Company    *string
	Phone      *string
	Extension  *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FullName == nil && p.Title == nil && p.Department == nil &&
		p.Company == nil && p.Phone == nil && p.Extension == nil
}

// DirectoryFields are the attributes owned by the directory. Sync compares and
// writes only these; Extension is maintained locally.
type DirectoryFields struct {
	FullName   string
	Title      string
	Department string
	Company    string
	Phone      string
	ExternalID string
}

func (p Profile) DirectoryFields() DirectoryFields {
	return DirectoryFields{
		FullName:   p.FullName,
		Title:      p.Title,
		Department: p.Department,
		Company:    p.Company,
		Phone:      p.Phone,
		ExternalID: p.ExternalID,
	}
}

// NormalizeEmail is the canonical form used as the profile and assignment key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
