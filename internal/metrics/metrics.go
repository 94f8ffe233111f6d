// Package metrics exposes Prometheus collectors for the reconciliation
// engine and the sandbox server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "applytrack"

// Metrics groups the collectors. Each Engine or sandbox Server takes one so
// tests can use a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	staleDiscarded *prometheus.CounterVec
	mutations      *prometheus.CounterVec
	backfills      *prometheus.CounterVec
	canonical      *prometheus.GaugeVec
	httpRequests   *prometheus.CounterVec
}

// New registers a fresh set of collectors on a new registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Source store fetches by source and result.",
		}, []string{"source", "result"}),
		staleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "stale_responses_total",
			Help:      "Fetch responses discarded because a newer one was already applied.",
		}, []string{"source"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actions",
			Name:      "mutations_total",
			Help:      "Apply and withdraw calls by result.",
		}, []string{"op", "result"}),
		backfills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "backfills_total",
			Help:      "Targeted project detail fetches by result.",
		}, []string{"result"}),
		canonical: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "canonical_entries",
			Help:      "Resolved applications by winning source.",
		}, []string{"source"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "http_requests_total",
			Help:      "Sandbox HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
	m.Registry.MustRegister(m.fetches, m.staleDiscarded, m.mutations, m.backfills, m.canonical, m.httpRequests)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveFetch counts one source fetch.
func (m *Metrics) ObserveFetch(source string, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, result(err)).Inc()
}

// ObserveStale counts one discarded out-of-order response.
func (m *Metrics) ObserveStale(source string) {
	if m == nil {
		return
	}
	m.staleDiscarded.WithLabelValues(source).Inc()
}

// ObserveMutation counts one apply or withdraw call.
func (m *Metrics) ObserveMutation(op string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result(err)).Inc()
}

// ObserveBackfill counts one project detail fetch.
func (m *Metrics) ObserveBackfill(err error) {
	if m == nil {
		return
	}
	m.backfills.WithLabelValues(result(err)).Inc()
}

// SetCanonical records how many entries each source won on the last resolve.
func (m *Metrics) SetCanonical(bySource map[string]int) {
	if m == nil {
		return
	}
	m.canonical.Reset()
	for source, n := range bySource {
		m.canonical.WithLabelValues(source).Set(float64(n))
	}
}

// ObserveHTTP counts one sandbox request.
func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
