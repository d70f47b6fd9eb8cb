package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking flows.
type SchedulingMetrics struct {
	bookingsTotal   *prometheus.CounterVec
	conflictsTotal  *prometheus.CounterVec
	promotionsTotal *prometheus.CounterVec
	opLatency       *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcenter",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"operation", "outcome"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcenter",
			Subsystem: "scheduling",
			Name:      "conflicts_total",
			Help:      "Total rejected bookings by conflicting resource",
		}, []string{"resource"}),
		promotionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcenter",
			Subsystem: "scheduling",
			Name:      "queue_promotions_total",
			Help:      "Waiting queue promotion attempts by outcome",
		}, []string{"outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callcenter",
			Subsystem: "scheduling",
			Name:      "operation_latency_seconds",
			Help:      "Latency of orchestrator operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.conflictsTotal, m.promotionsTotal, m.opLatency)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveConflict(resource string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(resource).Inc()
}

func (m *SchedulingMetrics) ObservePromotion(outcome string) {
	if m == nil {
		return
	}
	m.promotionsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.opLatency.WithLabelValues(operation).Observe(seconds)
}
