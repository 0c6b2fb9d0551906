// Package metrics exposes Prometheus collectors for upstream fetches and workbook exports.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Export outcomes recorded on guestcount_exports_total.
const (
	ExportSucceeded = "success"
	ExportEmpty     = "empty"
	ExportFailed    = "error"
	ExportLimited   = "rate_limited"
)

// AuditMetrics records upstream pagination and export activity. It satisfies
// commerce.FetchObserver.
type AuditMetrics struct {
	upstreamPages  prometheus.Counter
	upstreamErrors *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	fetchStops     *prometheus.CounterVec
	ordersFetched  prometheus.Counter
	exports        *prometheus.CounterVec
}

// NewAuditMetrics registers collectors on the default registerer.
func NewAuditMetrics() *AuditMetrics {
	return NewAuditMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewAuditMetricsWithRegisterer registers collectors on registerer. Collectors already present
// are reused so the constructor may run more than once per process.
func NewAuditMetricsWithRegisterer(registerer prometheus.Registerer) *AuditMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &AuditMetrics{
		upstreamPages: registerCounter(registerer, prometheus.CounterOpts{
			Name: "guestcount_upstream_pages_total",
			Help: "Total number of order pages fetched from the commerce API",
		}),
		upstreamErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "guestcount_upstream_errors_total",
			Help: "Total number of failed commerce API operations",
		}, []string{"operation"}),
		fetchDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "guestcount_fetch_duration_seconds",
			Help:    "Duration of complete paginated order fetches in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		fetchStops: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "guestcount_fetch_stops_total",
			Help: "Completed order fetches by the reason pagination ended",
		}, []string{"reason"}),
		ordersFetched: registerCounter(registerer, prometheus.CounterOpts{
			Name: "guestcount_orders_fetched_total",
			Help: "Total number of orders read from the commerce API",
		}),
		exports: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "guestcount_exports_total",
			Help: "Workbook export requests by outcome",
		}, []string{"outcome"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// PageFetched counts one fetched page.
func (m *AuditMetrics) PageFetched(int) {
	if m == nil {
		return
	}
	m.upstreamPages.Inc()
}

// FetchFailed counts a failed upstream operation such as list_orders or get_order.
func (m *AuditMetrics) FetchFailed(operation string) {
	if m == nil {
		return
	}
	m.upstreamErrors.WithLabelValues(operation).Inc()
}

// FetchCompleted records a finished pagination run.
func (m *AuditMetrics) FetchCompleted(orders int, stop string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ordersFetched.Add(float64(orders))
	m.fetchStops.WithLabelValues(stop).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

// ExportRecorded counts an export request with the given outcome.
func (m *AuditMetrics) ExportRecorded(outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(outcome).Inc()
}
