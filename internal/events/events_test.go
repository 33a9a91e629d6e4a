package events

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkpack/internal/model"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus(zerolog.New(io.Discard))

	var got []Event
	bus.Subscribe(BookingApproved, func(e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(BookingApproved, func(Event) error { return errors.New("ignored") })

	booking := &model.Booking{ID: "b1", WalkBlockID: "g1", CustomerID: "c1", DogID: "d1", Status: model.StatusApproved}
	require.NoError(t, bus.PublishJSON(BookingApproved, NewBookingPayload(booking, "acct-1")))
	require.NoError(t, bus.PublishJSON(BookingRejected, NewBookingPayload(booking, "acct-1")))

	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	payload, err := got[0].Booking()
	require.NoError(t, err)
	assert.Equal(t, "b1", payload.BookingID)
	assert.Equal(t, model.StatusApproved, payload.Status)
	assert.Equal(t, "acct-1", payload.Actor)
}

func TestEventBus_PublishJSONError(t *testing.T) {
	bus := NewEventBus(zerolog.New(io.Discard))
	assert.Error(t, bus.PublishJSON(BookingRequested, make(chan int)))
}
