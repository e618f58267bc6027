package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestRecorders(t *testing.T) {
	m := newTestMetrics()

	m.ObserveIdentify("created", 5*time.Millisecond)
	m.ObserveIdentify("created", 5*time.Millisecond)
	m.IncrementContactsCreated("secondary")
	m.RecordMerge(3)
	m.IncrementTxRetries()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IdentifyRequests.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContactsCreated.WithLabelValues("secondary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChainMerges))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ContactsRelinked))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxRetries))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIdentify("ok", time.Second)
		m.IncrementContactsCreated("primary")
		m.RecordMerge(1)
		m.IncrementTxRetries()
		m.IncrementEventPublishFailures()
		m.ObserveHTTPRequest("/identify", http.MethodPost, 200, time.Second)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := newTestMetrics()
	m.RecordMerge(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "linkage_chain_merges_total 1"))
}
