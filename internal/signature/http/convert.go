package http

import (
	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/pkg/sigsdk"
)

func toProfileResponse(p domain.Profile) sigsdk.ProfileResponse {
	return sigsdk.ProfileResponse{
		Email:      p.Email,
		FullName:   p.FullName,
		Title:      p.Title,
		Department: p.Department,
		Company:    p.Company,
		Phone:      p.Phone,
		Extension:  p.Extension,
		ExternalID: p.ExternalID,
		UpdatedAt:  p.UpdatedAt,
	}
}

func toAdminUserResponse(u domain.AdminUser) sigsdk.AdminUserResponse {
	return sigsdk.AdminUserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func toTemplateResponse(t domain.SignatureTemplate) sigsdk.TemplateResponse {
	return sigsdk.TemplateResponse{
		ID:        t.ID,
		Name:      t.Name,
		HTML:      t.HTML,
		IsDefault: t.IsDefault,
		UpdatedAt: t.UpdatedAt,
	}
}

func toAssignmentResponse(a domain.SignatureAssignment) sigsdk.AssignmentResponse {
	return sigsdk.AssignmentResponse{
		Email:         a.UserEmail,
		SignatureHTML: a.SignatureHTML,
		TemplateID:    a.TemplateID,
		UpdatedAt:     a.UpdatedAt,
	}
}
