// Package metrics exposes dashboard ingestion counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rulerdash"

// Metrics groups the collectors one ingestion pipeline updates. All record
// methods are safe on a nil receiver so components can run unmetered.
type Metrics struct {
	EventsTotal       *prometheus.CounterVec
	IgnoredTotal      prometheus.Counter
	DecodeErrorsTotal *prometheus.CounterVec
	SamplesTotal      *prometheus.CounterVec
	SinkDroppedTotal  *prometheus.CounterVec
	Connected         prometheus.Gauge
	Searching         prometheus.Gauge
	SessionsTotal     prometheus.Counter
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Events applied to the session state, by kind.",
		}, []string{"kind"}),
		IgnoredTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "ignored_total",
			Help:      "Messages with an unrecognised event name.",
		}),
		DecodeErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "decode_errors_total",
			Help:      "Malformed messages dropped, by event kind (empty when the envelope itself failed).",
		}, []string{"kind"}),
		SamplesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "samples_total",
			Help:      "History points appended, by series.",
		}, []string{"series"}),
		SinkDroppedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "dropped_total",
			Help:      "Samples or records dropped because a sink queue was full.",
		}, []string{"sink"}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "connected",
			Help:      "1 while the solver websocket is open.",
		}),
		Searching: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "searching",
			Help:      "1 while the session phase is Searching.",
		}),
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Sessions started by StartSearch.",
		}),
	}
}

func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordIgnored() {
	if m == nil {
		return
	}
	m.IgnoredTotal.Inc()
}

func (m *Metrics) RecordDecodeError(kind string) {
	if m == nil {
		return
	}
	m.DecodeErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSample(series string) {
	if m == nil {
		return
	}
	m.SamplesTotal.WithLabelValues(series).Inc()
}

func (m *Metrics) RecordSinkDrop(sink string) {
	if m == nil {
		return
	}
	m.SinkDroppedTotal.WithLabelValues(sink).Inc()
}

func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
}

func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	m.Connected.Set(boolGauge(up))
}

func (m *Metrics) SetSearching(on bool) {
	if m == nil {
		return
	}
	m.Searching.Set(boolGauge(on))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
