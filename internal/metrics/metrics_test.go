package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/dot-wallet/internal/metrics"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metric:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metric
				}
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}

	return 0
}

func TestRecordsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.CallCompleted("system_name", nil)
	m.CallCompleted("system_name", nil)
	m.CallCompleted("system_name", errors.Wrap(errs.ErrTimeout, "silent"))
	m.CallCompleted("author_submitExtrinsic", &errs.RPCError{Code: 1010, Message: "Invalid Transaction"})

	assert.Equal(t, 2.0, counterValue(t, reg, "dot_wallet_rpc_calls_total", map[string]string{"method": "system_name", "outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_rpc_calls_total", map[string]string{"method": "system_name", "outcome": "transport"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_rpc_calls_total", map[string]string{"method": "author_submitExtrinsic", "outcome": "rpc"}))

	m.HandshakeCompleted(nil)
	m.HandshakeCompleted(errs.ErrHandshake)
	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_websocket_handshakes_total", map[string]string{"outcome": "protocol"}))

	m.FrameSent("text")
	m.FrameReceived("ping")
	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_websocket_frames_sent_total", map[string]string{"opcode": "text"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_websocket_frames_received_total", map[string]string{"opcode": "ping"}))

	m.ExtrinsicBuilt(nil)
	m.ExtrinsicSubmitted(errs.Signing(errors.New("locked")))
	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_extrinsics_total", map[string]string{"stage": "built", "outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_extrinsics_total", map[string]string{"stage": "submitted", "outcome": "signing"}))
}

func TestConnectionStateGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_connection_state", map[string]string{"state": "closed"}))

	m.StateChanged("open")
	assert.Equal(t, 0.0, counterValue(t, reg, "dot_wallet_connection_state", map[string]string{"state": "closed"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "dot_wallet_connection_state", map[string]string{"state": "open"}))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.FrameSent("text")
		m.FrameReceived("text")
		m.HandshakeCompleted(nil)
		m.StateChanged("open")
		m.CallCompleted("system_name", nil)
		m.ExtrinsicBuilt(nil)
		m.ExtrinsicSubmitted(nil)
	})
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	assert.Error(t, err)
}

func TestHandlerServesMetrics(t *testing.T) {
	m, err := metrics.New(nil)
	require.NoError(t, err)
	m.CallCompleted("system_chain", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `dot_wallet_rpc_calls_total{method="system_chain",outcome="ok"} 1`))
}
