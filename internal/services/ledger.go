package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/esgportal/apiserver/internal/metrics"
	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

// EntitlementRepository defines persistence operations for the ledger.
type EntitlementRepository interface {
	Insert(ctx context.Context, e types.Entitlement) (types.Entitlement, bool, error)
	Get(ctx context.Context, id int64) (types.Entitlement, error)
	Exists(ctx context.Context, userID, companyID int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	DeleteByUser(ctx context.Context, userID int64) (int, error)
	ListForUser(ctx context.Context, userID int64, filter types.EntitlementFilter) ([]types.EntitlementView, error)
	ListAll(ctx context.Context) ([]types.EntitlementView, error)
}

// LedgerService maintains the mapping of users to the companies whose
// reports they may read.
type LedgerService struct {
	users   UserRepository
	catalog *CatalogService
	repo    EntitlementRepository
}

func NewLedgerService(users UserRepository, catalog *CatalogService, repo EntitlementRepository) *LedgerService {
	return &LedgerService{users: users, catalog: catalog, repo: repo}
}

// GrantResult is the outcome of a single grant.
type GrantResult struct {
	Entitlement types.Entitlement `json:"entitlement"`
	Company     types.Company     `json:"company"`
	// Created is false when the pair was already entitled and the
	// existing entitlement was returned unchanged.
	Created bool `json:"created"`
}

// GrantOutcome reports one item of a batch grant.
type GrantOutcome struct {
	Ref           string `json:"ref"`
	OK            bool   `json:"ok"`
	EntitlementID int64  `json:"entitlement_id,omitempty"`
	Created       bool   `json:"created"`
	Error         string `json:"error,omitempty"`
}

// Grant entitles the user to the company's report. Granting an already
// entitled pair is a no-op returning the existing entitlement.
func (s *LedgerService) Grant(ctx context.Context, userID int64, companyRef string, grantedBy *int64, note string) (GrantResult, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return GrantResult{}, err
	}
	return s.grant(ctx, user, companyRef, grantedBy, note)
}

// GrantByUsername is Grant with the user given by username.
func (s *LedgerService) GrantByUsername(ctx context.Context, username, companyRef string, grantedBy *int64, note string) (GrantResult, error) {
	if strings.TrimSpace(username) == "" {
		return GrantResult{}, NewValidationError("username", "required")
	}
	user, err := s.users.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return GrantResult{}, notFound("user", username)
		}
		return GrantResult{}, err
	}
	return s.grant(ctx, user, companyRef, grantedBy, note)
}

func (s *LedgerService) grant(ctx context.Context, user types.User, companyRef string, grantedBy *int64, note string) (GrantResult, error) {
	company, err := s.catalog.Resolve(ctx, companyRef)
	if err != nil {
		return GrantResult{}, err
	}

	entitlement, created, err := s.repo.Insert(ctx, types.Entitlement{
		UserID:    user.ID,
		CompanyID: company.ID,
		GrantedBy: grantedBy,
		Note:      strings.TrimSpace(note),
	})
	if err != nil {
		return GrantResult{}, err
	}
	metrics.Grant(created)

	zerolog.Ctx(ctx).Info().
		Int64("user_id", user.ID).
		Str("isin", company.ISIN).
		Bool("created", created).
		Msg("entitlement granted")
	return GrantResult{Entitlement: entitlement, Company: company, Created: created}, nil
}

// GrantBatch grants each reference independently. A bad reference is
// reported in its outcome and never aborts the others. Only an unknown
// user fails the whole call.
func (s *LedgerService) GrantBatch(ctx context.Context, userID int64, companyRefs []string, grantedBy *int64, note string) ([]GrantOutcome, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]GrantOutcome, 0, len(companyRefs))
	for _, ref := range companyRefs {
		outcome := GrantOutcome{Ref: ref}
		result, err := s.grant(ctx, user, ref, grantedBy, note)
		if err != nil {
			outcome.Error = batchErrorMessage(ctx, ref, err)
		} else {
			outcome.OK = true
			outcome.EntitlementID = result.Entitlement.ID
			outcome.Created = result.Created
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func batchErrorMessage(ctx context.Context, ref string, err error) string {
	var nf *NotFoundError
	var verr *ValidationError
	switch {
	case errors.As(err, &nf), errors.As(err, &verr):
		return err.Error()
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("ref", ref).Msg("batch grant item failed")
		return "internal error"
	}
}

// Revoke deletes one entitlement. Unknown ids are reported, not ignored.
func (s *LedgerService) Revoke(ctx context.Context, entitlementID int64) error {
	if err := s.repo.Delete(ctx, entitlementID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("entitlement", entitlementID)
		}
		return err
	}
	return nil
}

// RevokeAll deletes every entitlement of the user and returns the count.
func (s *LedgerService) RevokeAll(ctx context.Context, userID int64) (int, error) {
	if _, err := s.user(ctx, userID); err != nil {
		return 0, err
	}
	return s.repo.DeleteByUser(ctx, userID)
}

// ListForUser returns the user's entitlements joined with current catalog data.
func (s *LedgerService) ListForUser(ctx context.Context, userID int64, filter types.EntitlementFilter) ([]types.EntitlementView, error) {
	if _, err := s.user(ctx, userID); err != nil {
		return nil, err
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Sector = strings.TrimSpace(filter.Sector)
	return s.repo.ListForUser(ctx, userID, filter)
}

func (s *LedgerService) ListAll(ctx context.Context) ([]types.EntitlementView, error) {
	return s.repo.ListAll(ctx)
}

// HasAccess is the predicate the report gateway depends on. It always
// reads the ledger; there is no cache.
func (s *LedgerService) HasAccess(ctx context.Context, userID, companyID int64) (bool, error) {
	return s.repo.Exists(ctx, userID, companyID)
}

func (s *LedgerService) user(ctx context.Context, userID int64) (types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("user", userID)
		}
		return types.User{}, err
	}
	return user, nil
}
