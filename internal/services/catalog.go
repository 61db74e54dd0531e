package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/esgportal/apiserver/internal/storage"
	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

// CompanyRepository defines persistence operations for the catalog.
type CompanyRepository interface {
	List(ctx context.Context, filter types.CompanyFilter) ([]types.Company, error)
	GetByID(ctx context.Context, id int64) (types.Company, error)
	GetByISIN(ctx context.Context, isin string) (types.Company, error)
	FindByName(ctx context.Context, name string) ([]types.Company, error)
	Create(ctx context.Context, company types.Company) (types.Company, error)
	Update(ctx context.Context, company types.Company) (types.Company, error)
	SetReport(ctx context.Context, id int64, filename string) error
}

// FundRepository defines persistence operations for the fund catalog.
type FundRepository interface {
	List(ctx context.Context) ([]types.Fund, error)
	GetByName(ctx context.Context, name string) (types.Fund, error)
	Create(ctx context.Context, fund types.Fund) (types.Fund, error)
	Update(ctx context.Context, fund types.Fund) (types.Fund, error)
}

// ArtifactStore is the object storage holding report PDFs.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

const pdfContentType = "application/pdf"

var pdfMagic = []byte("%PDF-")

// CatalogService exposes the company and fund catalogs. Rows change only
// through the sync and report upload paths.
type CatalogService struct {
	repo      CompanyRepository
	funds     FundRepository
	artifacts ArtifactStore
}

func NewCatalogService(repo CompanyRepository, funds FundRepository, artifacts ArtifactStore) *CatalogService {
	return &CatalogService{repo: repo, funds: funds, artifacts: artifacts}
}

func (s *CatalogService) List(ctx context.Context, filter types.CompanyFilter) ([]types.Company, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Sector = strings.TrimSpace(filter.Sector)
	return s.repo.List(ctx, filter)
}

// AvailableReports lists companies that have a stored report.
func (s *CatalogService) AvailableReports(ctx context.Context) ([]types.Company, error) {
	hasReport := true
	return s.repo.List(ctx, types.CompanyFilter{HasReport: &hasReport})
}

func (s *CatalogService) ListFunds(ctx context.Context) ([]types.Fund, error) {
	return s.funds.List(ctx)
}

// Resolve looks a company up by ISIN, then by case-insensitive exact name.
// An unknown or ambiguous reference fails with a NotFoundError carrying
// the reference as given.
func (s *CatalogService) Resolve(ctx context.Context, ref string) (types.Company, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return types.Company{}, NewValidationError("company", "required")
	}

	company, err := s.repo.GetByISIN(ctx, strings.ToUpper(trimmed))
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Company{}, err
	}

	matches, err := s.repo.FindByName(ctx, trimmed)
	if err != nil {
		return types.Company{}, err
	}
	if len(matches) != 1 {
		return types.Company{}, &NotFoundError{Kind: "company", Ref: ref}
	}
	return matches[0], nil
}

// UploadReport stores a PDF as the company's report and flags the company.
func (s *CatalogService) UploadReport(ctx context.Context, isin string, data []byte) (types.Company, error) {
	isin = strings.ToUpper(strings.TrimSpace(isin))
	company, err := s.repo.GetByISIN(ctx, isin)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Company{}, notFound("company", isin)
		}
		return types.Company{}, err
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return types.Company{}, NewValidationError("file", "must be a PDF document")
	}

	key := storage.ReportKey(isin)
	if err := s.artifacts.Put(ctx, key, bytes.NewReader(data), int64(len(data)), pdfContentType); err != nil {
		return types.Company{}, err
	}
	if err := s.repo.SetReport(ctx, company.ID, key); err != nil {
		return types.Company{}, err
	}

	company.PDFFilename = key
	company.HasPDFReport = true
	return company, nil
}
