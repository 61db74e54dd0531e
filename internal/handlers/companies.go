package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/esgportal/apiserver/internal/services"
	"github.com/esgportal/apiserver/types"
)

// CompanyHandler serves the public company catalog.
type CompanyHandler struct {
	catalog *services.CatalogService
}

func NewCompanyHandler(catalog *services.CatalogService) *CompanyHandler {
	return &CompanyHandler{catalog: catalog}
}

// CompanyRouter registers catalog routes on the given router.
func CompanyRouter(r chi.Router, catalog *services.CatalogService) {
	handler := NewCompanyHandler(catalog)

	r.Get("/", handler.ListCompanies)
	r.Get("/{ref}", handler.GetCompany)
}

// FundRouter registers the public fund catalog.
func FundRouter(r chi.Router, catalog *services.CatalogService) {
	handler := NewCompanyHandler(catalog)

	r.Get("/", handler.ListFunds)
}

func (h *CompanyHandler) ListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.catalog.ListFunds(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, funds)
}

func (h *CompanyHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCompanyFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	companies, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	for i := range companies {
		companies[i] = publicCompany(companies[i])
	}
	writeJSON(w, http.StatusOK, companies)
}

// GetCompany resolves {ref} as an ISIN or exact company name.
func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.catalog.Resolve(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publicCompany(company))
}

// publicCompany hides the storage key; reports are reachable through the gateway only.
func publicCompany(c types.Company) types.Company {
	c.PDFFilename = ""
	return c
}

func parseCompanyFilter(r *http.Request) (types.CompanyFilter, error) {
	query := r.URL.Query()
	filter := types.CompanyFilter{
		Sector: strings.TrimSpace(query.Get("sector")),
		Search: strings.TrimSpace(query.Get("search")),
	}

	verr := &services.ValidationError{}
	if raw := strings.TrimSpace(query.Get("grade")); raw != "" {
		grade, err := types.ParseGrade(raw)
		if err != nil {
			verr.Add("grade", "unknown grade")
		}
		filter.Grade = grade
	}
	hasReport, err := parseOptionalBool(query.Get("has_report"))
	if err != nil {
		verr.Add("has_report", "must be a boolean")
	}
	filter.HasReport = hasReport
	return filter, verr.OrNil()
}
