package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"walkpack/internal/model"
)

// Booking lifecycle event types.
const (
	BookingRequested        = "booking.requested"
	BookingApproved         = "booking.approved"
	BookingRejected         = "booking.rejected"
	BookingCapacityExceeded = "booking.capacity_exceeded"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// BookingPayload is the JSON payload of booking lifecycle events.
type BookingPayload struct {
	BookingID   string              `json:"booking_id"`
	WalkBlockID string              `json:"walk_block_id"`
	CustomerID  string              `json:"customer_id"`
	DogID       string              `json:"dog_id"`
	Status      model.BookingStatus `json:"status"`
	Actor       string              `json:"actor,omitempty"`
}

// Booking decodes the payload of a booking lifecycle event.
func (e Event) Booking() (BookingPayload, error) {
	var p BookingPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("event handler failed")
		}
	}
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	b.Publish(Event{Type: eventType, Payload: data})
	return nil
}

// NewBookingPayload describes booking as seen after a lifecycle change.
func NewBookingPayload(booking *model.Booking, actor string) BookingPayload {
	return BookingPayload{
		BookingID:   booking.ID,
		WalkBlockID: booking.WalkBlockID,
		CustomerID:  booking.CustomerID,
		DogID:       booking.DogID,
		Status:      booking.Status,
		Actor:       actor,
	}
}
