package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/esgportal/apiserver/internal/services"
	"github.com/esgportal/apiserver/internal/store"
)

const (
	maxJSONBytes       = 1 << 20
	maxMultipartMemory = 32 << 20
	maxReportBytes     = 50 << 20
	maxSheetBytes      = 20 << 20
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// MessageResponse is returned by operations that have nothing else to report.
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadedFile is a single multipart file read into memory.
type UploadedFile struct {
	Filename string
	Data     []byte
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Anything unrecognised is logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	var nf *services.NotFoundError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: verr.Fields})
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := decoder.Decode(dst); err != nil {
		return services.NewValidationError("body", "malformed JSON")
	}
	return nil
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, services.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func parseOptionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// readUpload reads exactly one file from the multipart field.
func readUpload(r *http.Request, field string, limit int64) (UploadedFile, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return UploadedFile{}, services.NewValidationError(field, "multipart form required")
	}

	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return UploadedFile{}, services.NewValidationError(field, "required")
	}
	if len(files) > 1 {
		return UploadedFile{}, services.NewValidationError(field, "only one file is allowed")
	}

	return readFileHeader(files[0], field, limit)
}

func readFileHeader(header *multipart.FileHeader, field string, limit int64) (UploadedFile, error) {
	file, err := header.Open()
	if err != nil {
		return UploadedFile{}, services.NewValidationError(field, "failed to read upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return UploadedFile{}, services.NewValidationError(field, "failed to read upload")
	}
	if int64(len(data)) > limit {
		return UploadedFile{}, services.NewValidationError(field, "uploaded file too large")
	}
	return UploadedFile{Filename: header.Filename, Data: data}, nil
}
