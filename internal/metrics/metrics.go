// Package metrics exports wallet activity to Prometheus. A nil *Metrics is
// valid and records nothing, so the core runs unchanged without it.
package metrics

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

const (
	namespace = "dot_wallet"
	outcomeOK = "ok"
)

var connectionStates = []string{"closed", "handshaking", "open", "closing", "faulted"}

type Metrics struct {
	RPCCalls        *prometheus.CounterVec
	FramesSent      *prometheus.CounterVec
	FramesReceived  *prometheus.CounterVec
	Handshakes      *prometheus.CounterVec
	Extrinsics      *prometheus.CounterVec
	ConnectionState *prometheus.GaugeVec
	gatherer        prometheus.Gatherer
}

// New creates the wallet metrics and registers them with reg. A nil reg
// uses a fresh registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Finished JSON-RPC calls by method and outcome.",
		}, []string{"method", "outcome"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_frames_sent_total",
			Help:      "WebSocket frames written by opcode.",
		}, []string{"opcode"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_frames_received_total",
			Help:      "WebSocket frames read by opcode.",
		}, []string{"opcode"}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_handshakes_total",
			Help:      "Opening handshakes by outcome.",
		}, []string{"outcome"}),
		Extrinsics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extrinsics_total",
			Help:      "Extrinsics built and submitted by outcome.",
		}, []string{"stage", "outcome"}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current WebSocket connection state, 0 otherwise.",
		}, []string{"state"}),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{m.RPCCalls, m.FramesSent, m.FramesReceived, m.Handshakes, m.Extrinsics, m.ConnectionState} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register wallet metrics")
		}
	}

	m.StateChanged("closed")

	return m, nil
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameSent(opcode string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(opcode).Inc()
}

func (m *Metrics) FrameReceived(opcode string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(opcode).Inc()
}

func (m *Metrics) HandshakeCompleted(err error) {
	if m == nil {
		return
	}
	m.Handshakes.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) StateChanged(state string) {
	if m == nil {
		return
	}
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) CallCompleted(method string, err error) {
	if m == nil {
		return
	}
	m.RPCCalls.WithLabelValues(method, outcome(err)).Inc()
}

func (m *Metrics) ExtrinsicBuilt(err error) {
	if m == nil {
		return
	}
	m.Extrinsics.WithLabelValues("built", outcome(err)).Inc()
}

func (m *Metrics) ExtrinsicSubmitted(err error) {
	if m == nil {
		return
	}
	m.Extrinsics.WithLabelValues("submitted", outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	return errs.Class(err)
}
