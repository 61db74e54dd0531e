package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esgportal/apiserver/internal/services"
	"github.com/esgportal/apiserver/internal/store"
	"github.com/esgportal/apiserver/types"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", services.NewValidationError("isin", "required"), http.StatusBadRequest},
		{"not found", &services.NotFoundError{Kind: "company", Ref: "Nope"}, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", store.ErrNotFound), http.StatusNotFound},
		{"unauthenticated", services.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"conflict", store.ErrConflict, http.StatusConflict},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteServiceErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal error", resp.Error)
	assert.Empty(t, resp.Details)
}

func TestValidationDetailsAreReturned(t *testing.T) {
	rec := httptest.NewRecorder()
	err := (&services.ValidationError{}).Add("email", "required").Add("password", "too short")
	writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"email": "required", "password": "too short"}, resp.Details)
}

func TestParseCompanyFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/companies?sector=+Energy+&grade=b%2B&search=acme&has_report=1", nil)
	filter, err := parseCompanyFilter(req)
	require.NoError(t, err)
	assert.Equal(t, "Energy", filter.Sector)
	assert.Equal(t, types.GradeBPlus, filter.Grade)
	assert.Equal(t, "acme", filter.Search)
	require.NotNil(t, filter.HasReport)
	assert.True(t, *filter.HasReport)

	req = httptest.NewRequest(http.MethodGet, "/companies?grade=Q&has_report=maybe", nil)
	_, err = parseCompanyFilter(req)
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "grade")
	assert.Contains(t, verr.Fields, "has_report")
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := bearerToken(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Basic abc")
	_, err = bearerToken(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "bearer  abc.def ")
	token, err := bearerToken(req)
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}

func TestRequireStaff(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := RequireStaff(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(services.WithSession(req.Context(), services.Session{UserID: 1}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(services.WithSession(req.Context(), services.Session{UserID: 1, IsStaff: true}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
