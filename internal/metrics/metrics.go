package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for the HTTP surface and booking flows.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	bookings     *prometheus.CounterVec
	slotQueries  *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	offeredSlots prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "turnos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "availability",
			Name:      "queries_total",
			Help:      "Availability lookups by kind and outcome",
		}, []string{"kind", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "appointment",
			Name:      "transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"action", "outcome"}),
		offeredSlots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "turnos",
			Subsystem: "availability",
			Name:      "offered_slots",
			Help:      "Slots offered per day lookup after conflict filtering",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.httpRequests, m.httpLatency, m.bookings, m.slotQueries, m.transitions, m.offeredSlots)
	return m
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSlotQuery(kind string, err error) {
	if m == nil {
		return
	}
	m.slotQueries.WithLabelValues(kind, outcomeOf(err)).Inc()
}

func (m *Metrics) ObserveOfferedSlots(n int) {
	if m == nil {
		return
	}
	m.offeredSlots.Observe(float64(n))
}

func (m *Metrics) ObserveTransition(action string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
