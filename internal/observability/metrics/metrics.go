package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for booking and lifecycle flows.
// All methods are safe on a nil receiver.
type SchedulingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	bookingLatency   prometheus.Histogram
	transitionsTotal *prometheus.CounterVec
	remindersTotal   *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec
	noShowsTotal     prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of the booking transaction",
			Buckets:   prometheus.DefBuckets,
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Appointment state machine evaluations",
		}, []string{"trigger", "outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "reminder",
			Name:      "dispatch_total",
			Help:      "Reminder dispatch attempts",
		}, []string{"threshold", "outcome"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "events",
			Name:      "external_total",
			Help:      "External payment and conferencing events",
		}, []string{"source", "outcome"}),
		noShowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "lifecycle",
			Name:      "no_shows_total",
			Help:      "Appointments marked no_show by the sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.transitionsTotal, m.remindersTotal, m.eventsTotal, m.noShowsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveTransition(trigger, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(trigger, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveReminder(threshold, outcome string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(threshold, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveExternalEvent(source, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveNoShow() {
	if m == nil {
		return
	}
	m.noShowsTotal.Inc()
}
