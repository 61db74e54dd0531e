package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentUsesRoutePattern(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/reports/view/{company}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/reports/view/{company}", "403"))
	for _, isin := range []string{"INE000A01", "INE000B02"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/reports/view/"+isin, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/reports/view/{company}", "403"))
	assert.Equal(t, float64(2), after-before)
}

func TestDomainCounters(t *testing.T) {
	Init()
	Init()

	created := testutil.ToFloat64(grantsTotal.WithLabelValues("created"))
	Grant(true)
	Grant(false)
	assert.Equal(t, created+1, testutil.ToFloat64(grantsTotal.WithLabelValues("created")))

	denied := testutil.ToFloat64(reportAccessTotal.WithLabelValues("download", "forbidden"))
	ReportAccess("download", "forbidden")
	assert.Equal(t, denied+1, testutil.ToFloat64(reportAccessTotal.WithLabelValues("download", "forbidden")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "esgportal_entitlement_grants_total"))
}
