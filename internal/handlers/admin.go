package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/esgportal/apiserver/internal/services"
	"github.com/esgportal/apiserver/types"
)

// AdminHandler exposes staff-only user, entitlement and catalog management.
type AdminHandler struct {
	admin    *services.AdminService
	ledger   *services.LedgerService
	catalog  *services.CatalogService
	requests *services.RequestService
}

func NewAdminHandler(
	admin *services.AdminService,
	ledger *services.LedgerService,
	catalog *services.CatalogService,
	requests *services.RequestService,
) *AdminHandler {
	return &AdminHandler{admin: admin, ledger: ledger, catalog: catalog, requests: requests}
}

// AdminRouter registers admin routes. The caller is expected to have
// applied RequireSession and RequireStaff to r.
func AdminRouter(
	r chi.Router,
	admin *services.AdminService,
	ledger *services.LedgerService,
	catalog *services.CatalogService,
	requests *services.RequestService,
) {
	handler := NewAdminHandler(admin, ledger, catalog, requests)

	r.Get("/users", handler.ListUsers)
	r.Delete("/users/{userID}/delete", handler.DeleteUser)
	r.Get("/user-reports/{userID}", handler.UserReports)
	r.Get("/company-assignments", handler.CompanyAssignments)
	r.Get("/available-reports", handler.AvailableReports)
	r.Post("/assign-company", handler.AssignCompany)
	r.Post("/assign-available-report", handler.AssignAvailableReport)
	r.Post("/assign-batch", handler.AssignBatch)
	r.Delete("/remove-company/{entitlementID}", handler.RemoveCompany)
	r.Delete("/remove-all-companies/{userID}", handler.RemoveAllCompanies)
	r.Get("/access-requests", handler.ListAccessRequests)
	r.Post("/access-requests/{requestID}/approve", handler.ApproveAccessRequest)
	r.Post("/access-requests/{requestID}/reject", handler.RejectAccessRequest)
	r.Post("/reports/{isin}/upload", handler.UploadReport)
	r.Post("/sync-catalog", handler.SyncCatalog)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	removed, err := h.admin.DeleteUser(r.Context(), session, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteUserResponse{
		Message:             "User deleted",
		EntitlementsRemoved: removed,
	})
}

func (h *AdminHandler) UserReports(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views, err := h.ledger.ListForUser(r.Context(), userID, types.EntitlementFilter{})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *AdminHandler) CompanyAssignments(w http.ResponseWriter, r *http.Request) {
	views, err := h.ledger.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *AdminHandler) AvailableReports(w http.ResponseWriter, r *http.Request) {
	companies, err := h.catalog.AvailableReports(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

// AssignCompany grants by user id and company ISIN or name.
func (h *AdminHandler) AssignCompany(w http.ResponseWriter, r *http.Request) {
	var req AssignCompanyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.UserID < 1 {
		writeServiceError(w, r, services.NewValidationError("user_id", "required"))
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	result, err := h.ledger.Grant(r.Context(), req.UserID, req.CompanyISIN, &session.UserID, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeGrantResult(w, result)
}

// AssignAvailableReport grants by username. 201 for a new grant, 200 when
// the user already held it.
func (h *AdminHandler) AssignAvailableReport(w http.ResponseWriter, r *http.Request) {
	var req AssignReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	result, err := h.ledger.GrantByUsername(r.Context(), req.Username, req.ISIN, &session.UserID, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeGrantResult(w, result)
}

func writeGrantResult(w http.ResponseWriter, result services.GrantResult) {
	status := http.StatusCreated
	message := fmt.Sprintf("Report for %s assigned", result.Company.Name)
	if !result.Created {
		status = http.StatusOK
		message = "Report already assigned to user"
	}
	writeJSON(w, status, GrantResponse{Message: message, GrantResult: result})
}

// AssignBatch grants several companies to one user and reports each item.
func (h *AdminHandler) AssignBatch(w http.ResponseWriter, r *http.Request) {
	var req AssignBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	verr := &services.ValidationError{}
	if req.UserID < 1 {
		verr.Add("user_id", "required")
	}
	if len(req.Companies) == 0 {
		verr.Add("companies", "at least one company is required")
	}
	if err := verr.OrNil(); err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	outcomes, err := h.ledger.GrantBatch(r.Context(), req.UserID, req.Companies, &session.UserID, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := BatchResponse{Results: outcomes}
	for _, outcome := range outcomes {
		switch {
		case !outcome.OK:
			resp.Failed++
		case outcome.Created:
			resp.Created++
		default:
			resp.Existing++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) RemoveCompany(w http.ResponseWriter, r *http.Request) {
	entitlementID, err := parseIDParam(r, "entitlementID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.ledger.Revoke(r.Context(), entitlementID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Company assignment removed"})
}

func (h *AdminHandler) RemoveAllCompanies(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	removed, err := h.ledger.RevokeAll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RevokeAllResponse{
		Message: fmt.Sprintf("Removed %d company assignments", removed),
		Removed: removed,
	})
}

func (h *AdminHandler) ListAccessRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.requests.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *AdminHandler) ApproveAccessRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	result, err := h.requests.Approve(r.Context(), session, requestID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GrantResponse{Message: "Request approved", GrantResult: result})
}

func (h *AdminHandler) RejectAccessRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, _ := services.SessionFromContext(r.Context())
	if err := h.requests.Reject(r.Context(), session, requestID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Request rejected"})
}

// UploadReport stores the multipart "file" as the company's PDF report.
func (h *AdminHandler) UploadReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReportBytes+maxMultipartMemory)
	upload, err := readUpload(r, "file", maxReportBytes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	company, err := h.catalog.UploadReport(r.Context(), chi.URLParam(r, "isin"), upload.Data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

// SyncCatalog imports a CSV or XLSX catalog sheet from the multipart "file".
// Existing companies are updated only when the "force" field is true.
func (h *AdminHandler) SyncCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSheetBytes+maxMultipartMemory)
	upload, err := readUpload(r, "file", maxSheetBytes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	force := false
	if raw := strings.TrimSpace(r.FormValue("force")); raw != "" {
		force, err = strconv.ParseBool(raw)
		if err != nil {
			writeServiceError(w, r, services.NewValidationError("force", "must be a boolean"))
			return
		}
	}

	rows, err := services.ParseSheet(upload.Filename, upload.Data)
	if err != nil {
		writeServiceError(w, r, services.NewValidationError("file", err.Error()))
		return
	}

	report, err := h.catalog.Sync(r.Context(), rows, force)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type AssignCompanyRequest struct {
	UserID      int64  `json:"user_id"`
	CompanyISIN string `json:"company_isin"`
	Notes       string `json:"notes"`
}

type AssignReportRequest struct {
	Username string `json:"username"`
	ISIN     string `json:"isin"`
	Notes    string `json:"notes"`
}

type AssignBatchRequest struct {
	UserID    int64    `json:"user_id"`
	Companies []string `json:"companies"`
	Notes     string   `json:"notes"`
}

type GrantResponse struct {
	Message string `json:"message"`
	services.GrantResult
}

type BatchResponse struct {
	Created  int                     `json:"created"`
	Existing int                     `json:"existing"`
	Failed   int                     `json:"failed"`
	Results  []services.GrantOutcome `json:"results"`
}

type RevokeAllResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

type DeleteUserResponse struct {
	Message             string `json:"message"`
	EntitlementsRemoved int    `json:"entitlements_removed"`
}
