package metrics

import (
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkpack/internal/events"
	"walkpack/internal/model"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(admissionDecisions.WithLabelValues("approve", "capacity_exceeded"))
	IncAdmissionDecision("approve", "capacity_exceeded")
	assert.Equal(t, before+1, testutil.ToFloat64(admissionDecisions.WithLabelValues("approve", "capacity_exceeded")))

	before = testutil.ToFloat64(bookingRequests.WithLabelValues("created"))
	IncBookingRequest("created")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingRequests.WithLabelValues("created")))

	assert.NotPanics(t, func() { ObserveAdmission("approve", 3*time.Millisecond) })
}

func TestCountEvents(t *testing.T) {
	bus := events.NewEventBus(zerolog.New(io.Discard))
	CountEvents(bus)

	before := testutil.ToFloat64(eventsPublished.WithLabelValues(events.BookingRejected))
	require.NoError(t, bus.PublishJSON(events.BookingRejected, events.NewBookingPayload(&model.Booking{ID: "b1"}, "")))
	assert.Equal(t, before+1, testutil.ToFloat64(eventsPublished.WithLabelValues(events.BookingRejected)))
}
