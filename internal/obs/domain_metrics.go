package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ApportionmentsTotal counts apportionment requests by outcome.
	ApportionmentsTotal *prometheus.CounterVec
	// ApportionedItems records how many leaves each apportionment spread over.
	ApportionedItems prometheus.Histogram
	// TaxCalculationsTotal counts tax calculations by outcome and pricing mode.
	TaxCalculationsTotal *prometheus.CounterVec
	// TaxResolverDuration records rate resolver latency in milliseconds.
	TaxResolverDuration *prometheus.HistogramVec
	// TaxRateCacheTotal counts rate cache lookups (hit, miss, error).
	TaxRateCacheTotal *prometheus.CounterVec
	// RateLimitDecisions counts API rate limiter outcomes (allowed, limited, error).
	RateLimitDecisions *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers pricing-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ApportionmentsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "apportionments_total",
			Help:      "Count of discount apportionments by outcome.",
		}, []string{"result"}))
		ApportionedItems = registerOrReuse(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apportioned_items",
			Help:      "Number of line items a discount was spread across.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}))
		TaxCalculationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_calculations_total",
			Help:      "Count of tax calculations by outcome and pricing mode.",
		}, []string{"result", "mode"}))
		TaxResolverDuration = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tax_resolver_duration_ms",
			Help:      "Latency of tax rate lookups in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"resolver", "result"}))
		TaxRateCacheTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_rate_cache_total",
			Help:      "Tax rate cache lookups by result.",
		}, []string{"result"}))
		RateLimitDecisions = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "API rate limiter decisions by policy and result.",
		}, []string{"policy", "result"}))
	})
}
