/*
Package metrics exposes Prometheus instruments for the space server.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hzspace"

// Recorder groups every instrument the space server updates.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	roomsActive     prometheus.Gauge
	sessionsActive  prometheus.Gauge
	inboundEvents   *prometheus.CounterVec
	broadcasts      *prometheus.CounterVec
	framesDropped   prometheus.Counter
	sessionsEvicted prometheus.Counter
}

// New creates a Recorder backed by its own registry, including Go runtime collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms currently present in the registry.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions attached to the space, joined or not.",
		}),
		inboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound session events handled, by event name.",
		}, []string{"event"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Outbound events emitted to a room scope, by event name.",
		}, []string{"event"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped because a session queue was full.",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Sessions disconnected for not draining their queue.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.roomsActive,
		r.sessionsActive,
		r.inboundEvents,
		r.broadcasts,
		r.framesDropped,
		r.sessionsEvicted,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SetRooms(n int) {
	if r != nil {
		r.roomsActive.Set(float64(n))
	}
}

func (r *Recorder) SetSessions(n int) {
	if r != nil {
		r.sessionsActive.Set(float64(n))
	}
}

func (r *Recorder) InboundEvent(name string) {
	if r != nil {
		r.inboundEvents.WithLabelValues(name).Inc()
	}
}

func (r *Recorder) Broadcast(name string) {
	if r != nil {
		r.broadcasts.WithLabelValues(name).Inc()
	}
}

func (r *Recorder) FrameDropped() {
	if r != nil {
		r.framesDropped.Inc()
	}
}

func (r *Recorder) SessionEvicted() {
	if r != nil {
		r.sessionsEvicted.Inc()
	}
}
