package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/mailsig/internal/signature/domain"
	"github.com/aussiebroadwan/mailsig/internal/signature/metrics"
	"github.com/aussiebroadwan/mailsig/internal/signature/store"
	"github.com/aussiebroadwan/mailsig/pkg/slogx"
)

const DefaultSyncLimit = 1000

// DirectoryProvider lists users from the external workforce directory.
// filter is an OData expression and may be empty.
type DirectoryProvider interface {
	GetUsers(ctx context.Context, filter string, limit int) ([]domain.DirectoryUser, error)
}

// DirectoryService keeps local profiles in step with the directory.
type DirectoryService struct {
	Store    store.Store
	Provider DirectoryProvider
	Limit    int
	Now      func() time.Time
	Metrics  metrics.Recorder
}

func NewDirectoryService(st store.Store, provider DirectoryProvider, limit int, rec metrics.Recorder) *DirectoryService {
	if limit <= 0 {
		limit = DefaultSyncLimit
	}
	return &DirectoryService{
		Store:    st,
		Provider: provider,
		Limit:    limit,
		Now:      time.Now,
		Metrics:  metrics.OrNop(rec),
	}
}

type upsertOutcome int

const (
	outcomeInserted upsertOutcome = iota
	outcomeUpdated
	outcomeUnchanged
)

// MailFilter builds an OData equality filter on the mail attribute.
func MailFilter(email string) string {
	return "mail eq '" + strings.ReplaceAll(email, "'", "''") + "'"
}

// FetchAll returns up to limit directory users. A provider failure is logged
// and yields an empty result so a bulk sync degrades instead of aborting.
func (s *DirectoryService) FetchAll(ctx context.Context, filter string, limit int) []domain.DirectoryUser {
	log := slogx.FromContext(ctx)

	if s.Provider == nil {
		log.Warn("directory provider not configured, nothing fetched")
		return []domain.DirectoryUser{}
	}

	start := time.Now()
	users, err := s.Provider.GetUsers(ctx, filter, limit)
	s.Metrics.RecordDirectoryLatency(time.Since(start))
	if err != nil {
		s.Metrics.RecordDirectoryFailure("fetch_all")
		log.Error("directory fetch failed", "filter", filter, "limit", limit, "err", err)
		return []domain.DirectoryUser{}
	}
	return users
}

// Reconcile upserts each record into profiles keyed by normalised mail.
// Records without mail are skipped. The first store failure stops the run
// and is returned with the counts accumulated so far.
func (s *DirectoryService) Reconcile(ctx context.Context, users []domain.DirectoryUser) (domain.SyncResult, error) {
	var res domain.SyncResult
	defer func() { s.Metrics.RecordSync(res) }()

	for _, u := range users {
		email := domain.NormalizeEmail(u.Mail)
		if email == "" {
			res.Skipped++
			continue
		}

		outcome, _, err := s.upsert(ctx, email, u.Fields())
		if err != nil {
			return res, storeErr(err)
		}
		switch outcome {
		case outcomeInserted:
			res.Inserted++
		case outcomeUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}

	slogx.FromContext(ctx).Info("directory reconcile complete",
		"inserted", res.Inserted,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"skipped", res.Skipped,
	)
	return res, nil
}

// SyncAll pulls the whole directory, up to the configured limit, and
// reconciles it.
func (s *DirectoryService) SyncAll(ctx context.Context) (domain.SyncResult, error) {
	return s.Reconcile(ctx, s.FetchAll(ctx, "", s.Limit))
}

// ReconcileOne refreshes a single profile from the directory. Unlike bulk
// sync, provider failures surface as ErrProviderUnavailable.
func (s *DirectoryService) ReconcileOne(ctx context.Context, email string) (domain.Profile, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Profile{}, invalidInput("email is required")
	}
	if s.Provider == nil {
		return domain.Profile{}, ErrProviderUnavailable
	}

	start := time.Now()
	users, err := s.Provider.GetUsers(ctx, MailFilter(email), 1)
	s.Metrics.RecordDirectoryLatency(time.Since(start))
	if err != nil {
		s.Metrics.RecordDirectoryFailure("reconcile_one")
		slogx.FromContext(ctx).Error("directory lookup failed", "email", email, "err", err)
		return domain.Profile{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if len(users) == 0 {
		return domain.Profile{}, ErrDirectoryNotFound
	}

	outcome, p, err := s.upsert(ctx, email, users[0].Fields())
	if err != nil {
		return domain.Profile{}, storeErr(err)
	}

	var res domain.SyncResult
	switch outcome {
	case outcomeInserted:
		res.Inserted = 1
	case outcomeUpdated:
		res.Updated = 1
	default:
		res.Unchanged = 1
	}
	s.Metrics.RecordSync(res)
	return p, nil
}

// upsert inserts or updates one profile inside its own transaction. An
// identical record leaves the row, including updated_at, untouched.
func (s *DirectoryService) upsert(ctx context.Context, email string, f domain.DirectoryFields) (upsertOutcome, domain.Profile, error) {
	now := s.Now().UTC().Truncate(time.Millisecond)

	var (
		outcome upsertOutcome
		result  domain.Profile
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Profiles().GetProfile(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			result = domain.Profile{
				Email:      email,
				FullName:   f.FullName,
				Title:      f.Title,
				Department: f.Department,
				Company:    f.Company,
				Phone:      f.Phone,
				ExternalID: f.ExternalID,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			outcome = outcomeInserted
			return tx.Profiles().InsertProfile(ctx, result)
		}
		if err != nil {
			return err
		}

		if existing.DirectoryFields() == f {
			result, outcome = existing, outcomeUnchanged
			return nil
		}

		if err := tx.Profiles().UpdateDirectoryFields(ctx, email, f, now); err != nil {
			return err
		}
		result = existing
		result.FullName = f.FullName
		result.Title = f.Title
		result.Department = f.Department
		result.Company = f.Company
		result.Phone = f.Phone
		result.ExternalID = f.ExternalID
		result.UpdatedAt = now
		outcome = outcomeUpdated
		return nil
	})
	return outcome, result, err
}
