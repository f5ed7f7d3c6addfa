// Package metrics exposes Prometheus collectors for calculations and
// registry access.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Calculation outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid_input"
	OutcomeUnavailable = "data_unavailable"
	OutcomeError       = "error"
)

var (
	Calculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faaxis_calculations_total",
			Help: "Total number of projections by outcome",
		},
		[]string{"source", "outcome"},
	)

	CalculationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faaxis_calculation_duration_seconds",
			Help:    "Duration of a projection including the registry read",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"source"},
	)

	OmittedFirms = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faaxis_omitted_firms_total",
			Help: "Requested firms left out of a projection",
		},
		[]string{"reason"},
	)

	RegistryLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faaxis_registry_loads_total",
			Help: "Registry snapshot reads by result",
		},
		[]string{"result"},
	)

	RegistryFirms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faaxis_registry_firms",
			Help: "Number of firms with a deal in the last registry snapshot",
		},
	)
)

// ObserveCalculation records one projection attempt.
func ObserveCalculation(source, outcome string, elapsed time.Duration) {
	Calculations.WithLabelValues(source, outcome).Inc()
	CalculationDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveOmitted counts firms left out of a projection.
func ObserveOmitted(reason string, n int) {
	if n > 0 {
		OmittedFirms.WithLabelValues(reason).Add(float64(n))
	}
}

// ObserveRegistryLoad records a snapshot read. firms is ignored on failure.
func ObserveRegistryLoad(err error, firms int) {
	if err != nil {
		RegistryLoads.WithLabelValues("error").Inc()
		return
	}
	RegistryLoads.WithLabelValues("ok").Inc()
	RegistryFirms.Set(float64(firms))
}
