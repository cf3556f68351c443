// Package metrics exposes Prometheus counters for the account and session
// flows on a dedicated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder is what the session service reports into.
type Recorder interface {
	Registration(outcome string)
	Login(outcome string)
	Upload(kind, outcome string)
}

// Metrics implements Recorder with Prometheus counters.
type Metrics struct {
	registry      *prometheus.Registry
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	uploads       *prometheus.CounterVec
}

// New registers the counters plus Go/process collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidkeeper",
			Name:      "registrations_total",
			Help:      "Account registrations by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidkeeper",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidkeeper",
			Name:      "uploads_total",
			Help:      "Object uploads by asset kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		m.registrations,
		m.logins,
		m.uploads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registration(outcome string) { m.registrations.WithLabelValues(outcome).Inc() }

func (m *Metrics) Login(outcome string) { m.logins.WithLabelValues(outcome).Inc() }

func (m *Metrics) Upload(kind, outcome string) { m.uploads.WithLabelValues(kind, outcome).Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) Registration(string)   {}
func (Nop) Login(string)          {}
func (Nop) Upload(string, string) {}
