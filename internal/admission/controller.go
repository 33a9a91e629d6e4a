// Package admission turns pending bookings into approved or rejected ones
// without letting a walk block's approved count exceed its capacity.
package admission

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"walkpack/internal/access"
	"walkpack/internal/events"
	"walkpack/internal/metrics"
	"walkpack/internal/model"
)

const defaultTimeout = 3 * time.Second

// Store is the persistence admission needs. TransitionBooking must perform
// the capacity check and the status flip as one atomic unit.
type Store interface {
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	GetWalkBlock(ctx context.Context, id string) (*model.WalkBlock, error)
	ListPendingByBlock(ctx context.Context, walkBlockID string) ([]model.Booking, error)
	TransitionBooking(ctx context.Context, bookingID string, to model.BookingStatus) (*model.Booking, error)
}

// Authorizer checks that a principal may decide on a block's bookings.
type Authorizer interface {
	AuthorizeBlockOwner(ctx context.Context, p access.Principal, block *model.WalkBlock) error
}

// EventPublisher publishes booking lifecycle events.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// Controller is the sole writer of approved and rejected statuses.
type Controller struct {
	store   Store
	auth    Authorizer
	events  EventPublisher
	timeout time.Duration
	logger  zerolog.Logger
}

// NewController creates an admission controller. A timeout <= 0 uses 3s.
func NewController(store Store, auth Authorizer, publisher EventPublisher, timeout time.Duration, logger *zerolog.Logger) *Controller {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Controller{
		store:   store,
		auth:    auth,
		events:  publisher,
		timeout: timeout,
		logger:  logger.With().Str("component", "admission").Logger(),
	}
}

// Approve admits a pending booking. It fails with ErrCapacityExceeded when
// the block is full, leaving the booking pending, and with ErrStaleBooking
// when the booking was already decided. Retrying after a timeout is safe.
func (c *Controller) Approve(ctx context.Context, p access.Principal, bookingID string) (*model.Booking, error) {
	return c.decide(ctx, p, bookingID, model.StatusApproved)
}

// Reject declines a pending booking. It never consults capacity.
func (c *Controller) Reject(ctx context.Context, p access.Principal, bookingID string) (*model.Booking, error) {
	return c.decide(ctx, p, bookingID, model.StatusRejected)
}

func (c *Controller) decide(ctx context.Context, p access.Principal, bookingID string, to model.BookingStatus) (*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	booking, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	block, err := c.store.GetWalkBlock(ctx, booking.WalkBlockID)
	if err != nil {
		return nil, err
	}
	if err := c.auth.AuthorizeBlockOwner(ctx, p, block); err != nil {
		return nil, err
	}
	return c.transition(ctx, p, booking, to)
}

// transition runs one atomic decision and records its outcome.
func (c *Controller) transition(ctx context.Context, p access.Principal, booking *model.Booking, to model.BookingStatus) (*model.Booking, error) {
	decision := decisionLabel(to)
	start := time.Now()
	updated, err := c.store.TransitionBooking(ctx, booking.ID, to)
	metrics.ObserveAdmission(decision, time.Since(start))
	metrics.IncAdmissionDecision(decision, outcomeLabel(err))

	logEvent := c.logger.Info()
	if err != nil && !model.IsDomainError(err) {
		logEvent = c.logger.Error()
	}
	logEvent.
		Str("booking_id", booking.ID).
		Str("walk_block_id", booking.WalkBlockID).
		Str("decision", decision).
		Str("actor", p.String()).
		Str("outcome", outcomeLabel(err)).
		Err(err).
		Msg("admission decision")

	switch {
	case err == nil:
		eventType := events.BookingApproved
		if to == model.StatusRejected {
			eventType = events.BookingRejected
		}
		c.publish(eventType, updated, p)
		return updated, nil
	case errors.Is(err, model.ErrCapacityExceeded):
		c.publish(events.BookingCapacityExceeded, booking, p)
	}
	return nil, err
}

// AdmitPending approves the block's pending bookings oldest first until the
// block is full. Each approval is the same atomic step as Approve, so it may
// race manual decisions. Bookings left over stay pending.
func (c *Controller) AdmitPending(ctx context.Context, p access.Principal, walkBlockID string) ([]model.Booking, error) {
	block, err := c.store.GetWalkBlock(ctx, walkBlockID)
	if err != nil {
		return nil, err
	}
	if err := c.auth.AuthorizeBlockOwner(ctx, p, block); err != nil {
		return nil, err
	}

	pending, err := c.store.ListPendingByBlock(ctx, walkBlockID)
	if err != nil {
		return nil, err
	}

	var admitted []model.Booking
	for i := range pending {
		tctx, cancel := context.WithTimeout(ctx, c.timeout)
		updated, err := c.transition(tctx, p, &pending[i], model.StatusApproved)
		cancel()

		switch {
		case err == nil:
			admitted = append(admitted, *updated)
		case errors.Is(err, model.ErrStaleBooking):
			continue
		case errors.Is(err, model.ErrCapacityExceeded):
			return admitted, nil
		default:
			return admitted, err
		}
	}
	return admitted, nil
}

func (c *Controller) publish(eventType string, booking *model.Booking, p access.Principal) {
	if c.events == nil || booking == nil {
		return
	}
	if err := c.events.PublishJSON(eventType, events.NewBookingPayload(booking, p.String())); err != nil {
		c.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("failed to publish booking event")
	}
}

func decisionLabel(to model.BookingStatus) string {
	if to == model.StatusApproved {
		return "approve"
	}
	return "reject"
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, model.ErrStaleBooking):
		return "stale"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
