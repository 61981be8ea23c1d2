package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value reads a counter or gauge from the default registry; missing series read as 0
func value(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestRecordDispatch(t *testing.T) {
	EnsureRegistered()
	labels := map[string]string{"outcome": "command"}
	before := value(t, "dispatch_total", labels)

	RecordDispatch("command", 15*time.Millisecond)
	RecordDispatch("command", 5*time.Millisecond)

	assert.Equal(t, before+2, value(t, "dispatch_total", labels))
}

func TestRecordOutboundStatus(t *testing.T) {
	EnsureRegistered()
	ok := map[string]string{"kind": "text", "status": "success"}
	failed := map[string]string{"kind": "text", "status": "error"}
	okBefore, failedBefore := value(t, "outbound_send_total", ok), value(t, "outbound_send_total", failed)

	RecordOutbound("text", true)
	RecordOutbound("text", false)
	RecordOutbound("text", false)

	assert.Equal(t, okBefore+1, value(t, "outbound_send_total", ok))
	assert.Equal(t, failedBefore+2, value(t, "outbound_send_total", failed))
}

func TestRecordSessionsExpired(t *testing.T) {
	EnsureRegistered()
	before := value(t, "sessions_expired_total", nil)

	RecordSessionsExpired(0)
	RecordSessionsExpired(-3)
	RecordSessionsExpired(4)

	assert.Equal(t, before+4, value(t, "sessions_expired_total", nil))
}

func TestSetActiveLanes(t *testing.T) {
	SetActiveLanes(3)
	assert.Equal(t, float64(3), value(t, "active_lanes", nil))
	SetActiveLanes(0)
	assert.Equal(t, float64(0), value(t, "active_lanes", nil))
}

func TestMetricsHandler(t *testing.T) {
	RecordCommand("help")
	RecordWebhookRequest(http.MethodPost, "200", time.Millisecond)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `command_total{kind="help"}`)
	assert.Contains(t, string(body), "webhook_requests_total")
}
