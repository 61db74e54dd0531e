package services

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/rs/zerolog"

	"github.com/esgportal/apiserver/internal/metrics"
	"github.com/esgportal/apiserver/internal/storage"
	"github.com/esgportal/apiserver/types"
)

// Artifact is an opened report ready to be streamed. The caller must close Body.
type Artifact struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Company     types.Company
}

// GatewayService is the only path through which report bytes leave the
// system. Every call re-checks the ledger.
type GatewayService struct {
	catalog   *CatalogService
	ledger    *LedgerService
	artifacts ArtifactStore
}

func NewGatewayService(catalog *CatalogService, ledger *LedgerService, artifacts ArtifactStore) *GatewayService {
	return &GatewayService{catalog: catalog, ledger: ledger, artifacts: artifacts}
}

func (g *GatewayService) View(ctx context.Context, session Session, companyRef string) (Artifact, error) {
	return g.open(ctx, "view", session, companyRef)
}

func (g *GatewayService) Download(ctx context.Context, session Session, companyRef string) (Artifact, error) {
	return g.open(ctx, "download", session, companyRef)
}

// open checks, in order: the company resolves, it has a stored report,
// the caller is staff or entitled. Unknown companies and missing reports
// both yield the same report NotFound, so callers cannot probe the catalog.
func (g *GatewayService) open(ctx context.Context, action string, session Session, companyRef string) (Artifact, error) {
	artifact, outcome, err := g.authorize(ctx, session, companyRef)
	metrics.ReportAccess(action, outcome)
	if err != nil {
		return Artifact{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("action", action).
		Int64("user_id", session.UserID).
		Bool("staff", session.IsStaff).
		Str("isin", artifact.Company.ISIN).
		Msg("report served")
	return artifact, nil
}

func (g *GatewayService) authorize(ctx context.Context, session Session, companyRef string) (Artifact, string, error) {
	company, err := g.catalog.Resolve(ctx, companyRef)
	if err != nil {
		outcome := outcomeFor(err)
		if outcome == "not_found" {
			return Artifact{}, outcome, &NotFoundError{Kind: "report", Ref: companyRef}
		}
		return Artifact{}, outcome, err
	}
	if !company.HasArtifact() {
		return Artifact{}, "not_found", &NotFoundError{Kind: "report", Ref: companyRef}
	}

	if !session.IsStaff {
		ok, err := g.ledger.HasAccess(ctx, session.UserID, company.ID)
		if err != nil {
			return Artifact{}, "error", err
		}
		if !ok {
			return Artifact{}, "forbidden", ErrForbidden
		}
	}

	body, err := g.artifacts.Get(ctx, company.PDFFilename)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("isin", company.ISIN).Str("key", company.PDFFilename).Msg("report object unavailable")
			return Artifact{}, "not_found", &NotFoundError{Kind: "report", Ref: companyRef}
		}
		return Artifact{}, "error", err
	}

	return Artifact{
		Body:        body,
		Filename:    path.Base(company.PDFFilename),
		ContentType: pdfContentType,
		Company:     company,
	}, "served", nil
}

func outcomeFor(err error) string {
	var nf *NotFoundError
	var verr *ValidationError
	switch {
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &verr):
		return "invalid"
	default:
		return "error"
	}
}
