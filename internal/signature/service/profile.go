package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/security"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
)

const maxProfilePage = 500

// ProfileService is the manual edit path for profiles.
type ProfileService struct {
	Store     store.Store
	Sanitizer security.Sanitizer
	Now       func() time.Time
}

func NewProfileService(st store.Store, sanitizer security.Sanitizer) *ProfileService {
	return &ProfileService{Store: st, Sanitizer: sanitizer, Now: time.Now}
}

func (s *ProfileService) GetProfile(ctx context.Context, email string) (domain.Profile, error) {
	p, err := s.Store.Profiles().GetProfile(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, storeErr(err)
	}
	return p, nil
}

func (s *ProfileService) ListProfiles(ctx context.Context, f store.ProfileFilter) ([]domain.Profile, error) {
	if f.Limit <= 0 || f.Limit > maxProfilePage {
		f.Limit = maxProfilePage
	}
	ps, err := s.Store.Profiles().ListProfiles(ctx, f)
	if err != nil {
		return nil, storeErr(err)
	}
	return ps, nil
}

// UpdateProfile applies the supplied fields after stripping markup from them.
func (s *ProfileService) UpdateProfile(ctx context.Context, email string, patch domain.ProfilePatch) (domain.Profile, error) {
	email = domain.NormalizeEmail(email)
	if patch.Empty() {
		return domain.Profile{}, invalidInput("no fields to update")
	}

	if s.Sanitizer != nil {
		for _, f := range []**string{&patch.FullName, &patch.Title, &patch.Department, &patch.Company, &patch.Phone, &patch.Extension} {
			if *f != nil {
				v := s.Sanitizer.Text(**f)
				*f = &v
			}
		}
	}

	now := s.Now().UTC().Truncate(time.Millisecond)
	err := s.Store.Profiles().PatchProfile(ctx, email, patch, now)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, storeErr(err)
	}
	return s.GetProfile(ctx, email)
}
