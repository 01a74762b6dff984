package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/idlink/internal/engine"
	"github.com/roach88/idlink/internal/ir"
)

// Identify outcome labels.
const (
	OutcomeNewPrimary   = "new_primary"
	OutcomeNewSecondary = "new_secondary"
	OutcomeMerged       = "merged"
	OutcomeUnchanged    = "unchanged"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// Metrics holds the Prometheus metrics of one server.
//
// Each Metrics owns its registry, so several servers (and tests) can run in
// one process without duplicate registration panics.
//
// Metrics:
//   - idlink_identify_requests_total{outcome} - identify calls by outcome
//   - idlink_contacts_created_total{link_precedence} - contacts inserted
//   - idlink_primaries_demoted_total - primaries merged into older ones
//   - idlink_http_request_duration_seconds{method,route,status} - latency
type Metrics struct {
	registry *prometheus.Registry

	IdentifyRequests *prometheus.CounterVec
	ContactsCreated  *prometheus.CounterVec
	PrimariesDemoted prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

// NewMetrics creates metrics registered on a fresh registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		IdentifyRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idlink_identify_requests_total",
				Help: "Total identify requests by outcome",
			},
			[]string{"outcome"},
		),
		ContactsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idlink_contacts_created_total",
				Help: "Total contacts created by link precedence",
			},
			[]string{"link_precedence"},
		),
		PrimariesDemoted: f.NewCounter(
			prometheus.CounterOpts{
				Name: "idlink_primaries_demoted_total",
				Help: "Total primary contacts demoted by a merge",
			},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idlink_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordIdentify counts a successful identify call.
func (m *Metrics) RecordIdentify(res *engine.Result) {
	m.IdentifyRequests.WithLabelValues(IdentifyOutcome(res)).Inc()
	if res.Outcome.Created != nil {
		m.ContactsCreated.WithLabelValues(string(res.Outcome.Created.LinkPrecedence)).Inc()
	}
	if n := len(res.Outcome.Demoted); n > 0 {
		m.PrimariesDemoted.Add(float64(n))
	}
}

// IdentifyOutcome classifies a successful identify result.
// A merge takes precedence over the secondary it may also have created.
func IdentifyOutcome(res *engine.Result) string {
	switch {
	case len(res.Outcome.Demoted) > 0:
		return OutcomeMerged
	case res.Outcome.Created == nil:
		return OutcomeUnchanged
	case res.Outcome.Created.LinkPrecedence == ir.LinkPrimary:
		return OutcomeNewPrimary
	default:
		return OutcomeNewSecondary
	}
}
