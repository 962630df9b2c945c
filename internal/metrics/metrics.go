// Package metrics holds the prometheus collectors of the signaling server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "groupcall"

// Endpoint roles.
const (
	RolePublish   = "publish"
	RoleSubscribe = "subscribe"
)

type Metrics struct {
	RoomsActive       prometheus.Gauge
	SessionsActive    prometheus.Gauge
	PipelinesCreated  prometheus.Counter
	EndpointsCreated  *prometheus.CounterVec
	EndpointsReleased prometheus.Counter
	CandidatesQueued  prometheus.Counter
	CandidatesFlushed prometheus.Counter
	SignalMessages    *prometheus.CounterVec
	SignalErrors      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RoomsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms_active",
			Help: "Rooms currently present in the directory.",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active",
			Help: "Participants currently joined to a room.",
		}),
		PipelinesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pipelines_created_total",
			Help: "Media pipelines created.",
		}),
		EndpointsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "endpoints_created_total",
			Help: "Media endpoints created, by role.",
		}, []string{"role"}),
		EndpointsReleased: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "endpoints_released_total",
			Help: "Media endpoints released.",
		}),
		CandidatesQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ice_candidates_queued_total",
			Help: "ICE candidates buffered because their endpoint did not exist yet.",
		}),
		CandidatesFlushed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ice_candidates_flushed_total",
			Help: "Buffered ICE candidates delivered once their endpoint was created.",
		}),
		SignalMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_messages_total",
			Help: "Inbound signaling messages, by id.",
		}, []string{"id"}),
		SignalErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_errors_total",
			Help: "Error replies sent to clients, by code.",
		}, []string{"code"}),
	}
}

func (m *Metrics) RoomOpened() {
	if m != nil {
		m.RoomsActive.Inc()
		m.PipelinesCreated.Inc()
	}
}

func (m *Metrics) RoomClosed() {
	if m != nil {
		m.RoomsActive.Dec()
	}
}

func (m *Metrics) SessionJoined() {
	if m != nil {
		m.SessionsActive.Inc()
	}
}

func (m *Metrics) SessionLeft() {
	if m != nil {
		m.SessionsActive.Dec()
	}
}

func (m *Metrics) EndpointCreated(role string) {
	if m != nil {
		m.EndpointsCreated.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) EndpointReleased() {
	if m != nil {
		m.EndpointsReleased.Inc()
	}
}

func (m *Metrics) CandidateQueued() {
	if m != nil {
		m.CandidatesQueued.Inc()
	}
}

func (m *Metrics) CandidatesFlushedN(n int) {
	if m != nil && n > 0 {
		m.CandidatesFlushed.Add(float64(n))
	}
}

func (m *Metrics) SignalMessage(id string) {
	if m != nil {
		m.SignalMessages.WithLabelValues(id).Inc()
	}
}

func (m *Metrics) SignalError(code string) {
	if m != nil {
		m.SignalErrors.WithLabelValues(code).Inc()
	}
}
