package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/esgportal/apiserver/internal/metrics"
	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

// AccessRequestRepository defines persistence operations for access requests.
type AccessRequestRepository interface {
	Create(ctx context.Context, req types.AccessRequest) (types.AccessRequest, error)
	Get(ctx context.Context, id int64) (types.AccessRequest, error)
	ListByStatus(ctx context.Context, status types.AccessRequestStatus) ([]types.AccessRequest, error)
	Resolve(ctx context.Context, id int64, status types.AccessRequestStatus, resolvedBy int64) error
}

// Publisher sends a JSON notification to a channel.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any) (string, error)
}

// RequestService records self-service access requests and notifies staff.
// A request never grants access; only an admin approving it does, through
// the ledger.
type RequestService struct {
	repo      AccessRequestRepository
	catalog   *CatalogService
	ledger    *LedgerService
	publisher Publisher
	channel   string
}

func NewRequestService(repo AccessRequestRepository, catalog *CatalogService, ledger *LedgerService, publisher Publisher, channel string) *RequestService {
	return &RequestService{
		repo:      repo,
		catalog:   catalog,
		ledger:    ledger,
		publisher: publisher,
		channel:   channel,
	}
}

// Submit records a pending request and publishes a notification. A
// failed publish is logged; the request stays recorded.
func (s *RequestService) Submit(ctx context.Context, session Session, companyRef, note string) (types.AccessRequest, error) {
	company, err := s.catalog.Resolve(ctx, companyRef)
	if err != nil {
		return types.AccessRequest{}, err
	}

	entitled, err := s.ledger.HasAccess(ctx, session.UserID, company.ID)
	if err != nil {
		return types.AccessRequest{}, err
	}
	if entitled {
		return types.AccessRequest{}, NewValidationError("company", "already entitled")
	}

	req, err := s.repo.Create(ctx, types.AccessRequest{
		UserID:        session.UserID,
		CompanyID:     company.ID,
		Note:          strings.TrimSpace(note),
		Status:        types.AccessRequestPending,
		CorrelationID: uuid.NewString(),
	})
	if err != nil {
		return types.AccessRequest{}, err
	}
	req.Username = session.Username
	req.CompanyName = company.Name
	req.ISIN = company.ISIN
	metrics.AccessRequest("submitted")

	log := zerolog.Ctx(ctx).With().
		Str("correlation_id", req.CorrelationID).
		Str("isin", company.ISIN).
		Logger()

	if s.publisher != nil {
		event := types.AccessRequestEvent{
			CorrelationID: req.CorrelationID,
			RequestID:     req.ID,
			UserID:        req.UserID,
			Username:      req.Username,
			ISIN:          req.ISIN,
			CompanyName:   req.CompanyName,
			Note:          req.Note,
			CreatedAt:     req.CreatedAt,
		}
		if _, err := s.publisher.PublishJSON(ctx, s.channel, event); err != nil {
			log.Warn().Err(err).Msg("publish access request notification")
		}
	}

	log.Info().Int64("user_id", session.UserID).Msg("access request submitted")
	return req, nil
}

func (s *RequestService) ListPending(ctx context.Context) ([]types.AccessRequest, error) {
	return s.repo.ListByStatus(ctx, types.AccessRequestPending)
}

// Approve grants the requested entitlement and marks the request approved.
func (s *RequestService) Approve(ctx context.Context, actor Session, id int64) (GrantResult, error) {
	req, err := s.pending(ctx, id)
	if err != nil {
		return GrantResult{}, err
	}

	result, err := s.ledger.Grant(ctx, req.UserID, req.ISIN, &actor.UserID, req.Note)
	if err != nil {
		return GrantResult{}, err
	}
	if err := s.resolve(ctx, id, types.AccessRequestApproved, actor); err != nil {
		return GrantResult{}, err
	}
	metrics.AccessRequest("approved")
	return result, nil
}

func (s *RequestService) Reject(ctx context.Context, actor Session, id int64) error {
	if _, err := s.pending(ctx, id); err != nil {
		return err
	}
	if err := s.resolve(ctx, id, types.AccessRequestRejected, actor); err != nil {
		return err
	}
	metrics.AccessRequest("rejected")
	return nil
}

func (s *RequestService) pending(ctx context.Context, id int64) (types.AccessRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AccessRequest{}, notFound("access request", id)
		}
		return types.AccessRequest{}, err
	}
	if req.Status != types.AccessRequestPending {
		return types.AccessRequest{}, NewValidationError("status", "request already "+string(req.Status))
	}
	return req, nil
}

func (s *RequestService) resolve(ctx context.Context, id int64, status types.AccessRequestStatus, actor Session) error {
	if err := s.repo.Resolve(ctx, id, status, actor.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewValidationError("status", "request already resolved")
		}
		return err
	}
	return nil
}
