package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(transitions.WithLabelValues("job", "working", "ok"))
	RecordTransition("job", "working", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("job", "working", "ok")))
}

func TestRecordCascade(t *testing.T) {
	before := testutil.ToFloat64(cascadeDeclined.WithLabelValues("declined"))
	RecordCascade(4, false)
	assert.Equal(t, before+4, testutil.ToFloat64(cascadeDeclined.WithLabelValues("declined")))

	failedBefore := testutil.ToFloat64(cascadeDeclined.WithLabelValues("failed"))
	RecordCascade(0, true)
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(cascadeDeclined.WithLabelValues("failed")))
}

func TestInstrumentHandlerUsesPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := InstrumentHandler(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/v1/jobs/{id}", "418"))
	assert.GreaterOrEqual(t, got, 1.0)
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordRating()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sindh_reputation_ratings_total"))
}

func TestRecordLedgerAuditReplacesGauges(t *testing.T) {
	RecordLedgerAudit(10, 2)
	RecordLedgerAudit(12, 0)
	assert.Equal(t, 12.0, testutil.ToFloat64(ledgerAudited))
	assert.Equal(t, 0.0, testutil.ToFloat64(ledgerMismatches))
}
