package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/esgportal/apiserver/internal/services"
	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

// ReportHandler serves a user's entitled reports and the gated PDF endpoints.
type ReportHandler struct {
	ledger   *services.LedgerService
	gateway  *services.GatewayService
	requests *services.RequestService
}

func NewReportHandler(ledger *services.LedgerService, gateway *services.GatewayService, requests *services.RequestService) *ReportHandler {
	return &ReportHandler{ledger: ledger, gateway: gateway, requests: requests}
}

// ReportRouter registers session-protected report routes.
func ReportRouter(
	r chi.Router,
	ledger *services.LedgerService,
	gateway *services.GatewayService,
	requests *services.RequestService,
) {
	handler := NewReportHandler(ledger, gateway, requests)

	r.Get("/my-reports", handler.MyReports)
	r.Post("/request-report", handler.RequestReport)
	r.Get("/reports/view/{company}", handler.ViewReport)
	r.Get("/reports/download/{company}", handler.DownloadReport)
}

// MyReports lists the caller's entitlements joined with current company data.
func (h *ReportHandler) MyReports(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCompanyFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	views, err := h.ledger.ListForUser(r.Context(), session.UserID, types.EntitlementFilter(filter))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// RequestReport records an access request for staff review. It never grants access.
func (h *ReportHandler) RequestReport(w http.ResponseWriter, r *http.Request) {
	var req AccessRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ref := strings.TrimSpace(req.ISIN)
	if ref == "" {
		ref = strings.TrimSpace(req.CompanyName)
	}
	if ref == "" {
		writeServiceError(w, r, services.NewValidationError("company_name", "required"))
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	accessRequest, err := h.requests.Submit(r.Context(), session, ref, req.Notes)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) && verr.Fields["company"] == "already entitled" {
			writeError(w, http.StatusBadRequest, "You already have access to this company report")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AccessRequestResponse{
		Message: fmt.Sprintf("Your request for %s report has been submitted. Admin will review.", accessRequest.CompanyName),
		Request: accessRequest,
	})
}

func (h *ReportHandler) ViewReport(w http.ResponseWriter, r *http.Request) {
	session, _ := services.SessionFromContext(r.Context())
	artifact, err := h.gateway.View(r.Context(), session, chi.URLParam(r, "company"))
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	streamArtifact(w, r, artifact, "inline")
}

func (h *ReportHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	session, _ := services.SessionFromContext(r.Context())
	artifact, err := h.gateway.Download(r.Context(), session, chi.URLParam(r, "company"))
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	streamArtifact(w, r, artifact, "attachment")
}

func streamArtifact(w http.ResponseWriter, r *http.Request, artifact services.Artifact, disposition string) {
	defer artifact.Body.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, artifact.Filename))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, artifact.Body); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("isin", artifact.Company.ISIN).Msg("report stream interrupted")
	}
}

// writeGatewayError answers every not-found outcome with one message so an
// unknown company and a company without a report are indistinguishable.
func writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	var nf *services.NotFoundError
	switch {
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "You do not have access to this company report")
	case errors.As(err, &nf), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "No PDF report available for this company")
	default:
		writeServiceError(w, r, err)
	}
}

type AccessRequestBody struct {
	CompanyName string `json:"company_name"`
	ISIN        string `json:"isin"`
	Notes       string `json:"notes"`
}

type AccessRequestResponse struct {
	Message string              `json:"message"`
	Request types.AccessRequest `json:"request"`
}
