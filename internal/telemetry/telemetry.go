// Package telemetry provides the connector's injected metrics emitter. No
// component acquires it from a package-level registry; it is constructed
// once at startup (cmd/connector) and passed into each subsystem.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Emitter is the metrics surface every subsystem depends on. Keeping it an
// interface lets packet/claim/btp tests substitute a no-op implementation.
type Emitter interface {
	PacketOutcome(outcome, code string)
	BTPReconnect(peerID string)
	ClaimSettlement(peerID, chain string, success bool)
}

// PrometheusEmitter is the production Emitter, backed by client_golang.
type PrometheusEmitter struct {
	packetOutcomes  *prometheus.CounterVec
	btpReconnects   *prometheus.CounterVec
	claimSettlement *prometheus.CounterVec
}

// NewPrometheusEmitter registers the connector's metrics against reg and
// returns an Emitter. Pass prometheus.DefaultRegisterer for the process
// default registry.
func NewPrometheusEmitter(reg prometheus.Registerer) *PrometheusEmitter {
	e := &PrometheusEmitter{
		packetOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilp_connector_packet_outcomes_total",
			Help: "Count of Prepare outcomes by result (fulfill/reject) and ILP error code.",
		}, []string{"outcome", "code"}),
		btpReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilp_connector_btp_reconnects_total",
			Help: "Count of BTP reconnect attempts per peer.",
		}, []string{"peer"}),
		claimSettlement: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilp_connector_claim_settlement_total",
			Help: "Count of claim settlement dispatch outcomes by peer, chain and result.",
		}, []string{"peer", "chain", "result"}),
	}
	reg.MustRegister(e.packetOutcomes, e.btpReconnects, e.claimSettlement)
	return e
}

func (e *PrometheusEmitter) PacketOutcome(outcome, code string) {
	e.packetOutcomes.WithLabelValues(outcome, code).Inc()
}

func (e *PrometheusEmitter) BTPReconnect(peerID string) {
	e.btpReconnects.WithLabelValues(peerID).Inc()
}

func (e *PrometheusEmitter) ClaimSettlement(peerID, chain string, success bool) {
	result := "failed"
	if success {
		result = "success"
	}
	e.claimSettlement.WithLabelValues(peerID, chain, result).Inc()
}

// Noop is an Emitter that discards every event. Useful for tests and for
// wiring components before telemetry is fully configured.
type Noop struct{}

func (Noop) PacketOutcome(string, string)          {}
func (Noop) BTPReconnect(string)                   {}
func (Noop) ClaimSettlement(string, string, bool) {}
