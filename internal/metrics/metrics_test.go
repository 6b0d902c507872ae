package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.EventObserved("Solana")
	m.EventObserved("Solana")
	m.SetSyncHeight("Ethereum", 1234)
	m.RelayTransition("Confirmed")
	m.RelayError("collect")
	m.SetQueueDepth(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsObserved.WithLabelValues("Solana")))
	assert.Equal(t, 1234.0, testutil.ToFloat64(m.syncHeight.WithLabelValues("Ethereum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayTransitions.WithLabelValues("Confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayErrors.WithLabelValues("collect")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bridge_relayer_events_observed_total")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventObserved("Solana")
		m.SetSyncHeight("Solana", 1)
		m.RelayTransition("Failed")
		m.RelayError("release")
		m.SetQueueDepth(1)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
