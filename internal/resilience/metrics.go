package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker and outbound HTTP metrics, labelled by dependency target.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "toko_pricing",
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toko_pricing",
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toko_pricing",
			Name:      "breaker_open_total",
			Help:      "Number of times a breaker transitioned into open state",
		},
		[]string{"target"},
	)
	HTTPAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toko_pricing",
			Name:      "outbound_http_attempts_total",
			Help:      "Outbound HTTP attempts by target and outcome (ok, error, throttled, rejected)",
		},
		[]string{"target", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, HTTPAttempts)
}
