package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	bookingsTotal  prometheus.Counter
	commitFailures *prometheus.CounterVec
	cancellations  *prometheus.CounterVec
	slotQueries    *prometheus.CounterVec
	resolveLatency prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "booking",
			Name:      "committed_total",
			Help:      "Total reservations written to the calendar",
		}),
		commitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "booking",
			Name:      "commit_failures_total",
			Help:      "Total commit step failures",
		}, []string{"step"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Total cancellation attempts",
		}, []string{"status"}),
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "schedule",
			Name:      "slot_queries_total",
			Help:      "Total free-slot resolutions",
		}, []string{"outcome"}),
		resolveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "studio",
			Subsystem: "schedule",
			Name:      "resolve_latency_seconds",
			Help:      "Latency of free-slot resolution including the calendar query",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.commitFailures, m.cancellations, m.slotQueries, m.resolveLatency)
	return m
}

func (m *BookingMetrics) ObserveCommit() {
	if m == nil {
		return
	}
	m.bookingsTotal.Inc()
}

func (m *BookingMetrics) ObserveCommitFailure(step string) {
	if m == nil {
		return
	}
	m.commitFailures.WithLabelValues(step).Inc()
}

func (m *BookingMetrics) ObserveCancellation(status string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(outcome).Inc()
	m.resolveLatency.Observe(seconds)
}
