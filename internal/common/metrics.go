package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	SignaturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kattest_signatures_total",
			Help: "Attestation signature attempts by mode and result.",
		},
		[]string{"mode", "result"},
	)
	TwoFactorVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kattest_twofactor_verifications_total",
			Help: "Second factor verifications by method and result.",
		},
		[]string{"method", "result"},
	)
	PinChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kattest_pin_checks_total",
			Help: "Signature PIN checks by result.",
		},
		[]string{"result"},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kattest_notifications_total",
			Help: "Notification deliveries by kind and result.",
		},
		[]string{"kind", "result"},
	)
	PublicVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kattest_public_verifications_total",
			Help: "Public verification link checks by result.",
		},
		[]string{"result"},
	)
)

var metricsRegistry = prometheus.NewRegistry()

func init() {
	metricsRegistry.MustRegister(
		SignaturesTotal,
		TwoFactorVerificationsTotal,
		PinChecksTotal,
		NotificationsTotal,
		PublicVerificationsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// MetricsGatherer exposes the service registry to the health server.
func MetricsGatherer() prometheus.Gatherer {
	return metricsRegistry
}
