package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Registration(OutcomeSuccess)
	m.Registration(OutcomeSuccess)
	m.Registration("conflict")
	m.Login(OutcomeFailure)
	m.Upload("avatar", OutcomeSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("avatar", OutcomeSuccess)))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Login(OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `vidkeeper_logins_total{outcome="success"} 1`)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.Registration(OutcomeSuccess)
	r.Login(OutcomeFailure)
	r.Upload("cover", OutcomeFailure)
}
