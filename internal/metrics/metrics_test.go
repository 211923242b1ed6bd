package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.TokenIssued(true)
	c.TokenIssued(true)
	c.TokenIssued(false)
	c.Compensation("register_account")
	c.RecordRequest("/v1/oauth/token", http.MethodPost, http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tokensIssued.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tokensIssued.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compensations.WithLabelValues("register_account")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("/v1/oauth/token", "POST", "200")))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.Compensation("register_integration")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `guardian_compensations_total{operation="register_integration"} 1`)
}
