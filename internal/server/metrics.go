package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry              *prometheus.Registry
	lookupsTotal          *prometheus.CounterVec
	updatesTotal          *prometheus.CounterVec
	mintsTotal            *prometheus.CounterVec
	reconcileRetriesTotal *prometheus.CounterVec
}

func newMetricsRegistry() *metricsRegistry {
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_lookups_total",
		Help: "Total number of eligibility lookups",
	}, []string{"status"})

	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_updates_total",
		Help: "Total number of record-store update requests",
	}, []string{"status"})

	mints := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_mints_total",
		Help: "Mint attempts by terminal outcome",
	}, []string{"outcome"})

	reconciles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_reconcile_retries_total",
		Help: "Manual reconciliation retries",
	}, []string{"result"})

	r := prometheus.NewRegistry()
	r.MustRegister(lookups, updates, mints, reconciles)

	return &metricsRegistry{
		registry:              r,
		lookupsTotal:          lookups,
		updatesTotal:          updates,
		mintsTotal:            mints,
		reconcileRetriesTotal: reconciles,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incLookup(status string) {
	m.lookupsTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incUpdate(status string) {
	m.updatesTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incMint(outcome string) {
	m.mintsTotal.WithLabelValues(outcome).Inc()
}

func (m *metricsRegistry) incReconcileRetry(result string) {
	m.reconcileRetriesTotal.WithLabelValues(result).Inc()
}
