package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"walkpack/internal/events"
)

var (
	once sync.Once

	bookingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walkpack",
			Name:      "booking_requests_total",
			Help:      "Count of booking requests by result.",
		},
		[]string{"result"},
	)

	admissionDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walkpack",
			Name:      "admission_decisions_total",
			Help:      "Count of approve/reject attempts by decision and result.",
		},
		[]string{"decision", "result"},
	)

	admissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "walkpack",
			Name:      "admission_duration_seconds",
			Help:      "Time spent in the admission transaction.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 3},
		},
		[]string{"decision"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walkpack",
			Name:      "http_requests_total",
			Help:      "Count of API requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walkpack",
			Name:      "events_published_total",
			Help:      "Count of booking lifecycle events by type.",
		},
		[]string{"type"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingRequests, admissionDecisions, admissionDuration, httpRequests, eventsPublished)
	})
}

func IncBookingRequest(result string) {
	bookingRequests.WithLabelValues(result).Inc()
}

func IncAdmissionDecision(decision, result string) {
	admissionDecisions.WithLabelValues(decision, result).Inc()
}

func ObserveAdmission(decision string, d time.Duration) {
	admissionDuration.WithLabelValues(decision).Observe(d.Seconds())
}

func IncHTTPRequest(route string, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

// CountEvents subscribes a counter to every booking lifecycle event type.
func CountEvents(bus *events.EventBus) {
	for _, t := range []string{
		events.BookingRequested,
		events.BookingApproved,
		events.BookingRejected,
		events.BookingCapacityExceeded,
	} {
		bus.Subscribe(t, func(e events.Event) error {
			eventsPublished.WithLabelValues(e.Type).Inc()
			return nil
		})
	}
}
