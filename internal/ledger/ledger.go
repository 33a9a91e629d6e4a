// Package ledger owns booking records: creating pending requests and reading
// them back for customer and walker surfaces. Status transitions belong to
// the admission package.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"walkpack/internal/access"
	"walkpack/internal/events"
	"walkpack/internal/metrics"
	"walkpack/internal/model"
)

// Store is the persistence the ledger needs.
type Store interface {
	GetWalkBlock(ctx context.Context, id string) (*model.WalkBlock, error)
	GetDog(ctx context.Context, id string) (*model.Dog, error)
	InsertPendingBooking(ctx context.Context, b *model.Booking) error
	FindActiveBooking(ctx context.Context, walkBlockID, customerID string) (*model.Booking, error)
	ListBookingsByBlock(ctx context.Context, walkBlockID string) ([]model.Booking, error)
	ListBookingsByCustomer(ctx context.Context, customerID string) ([]model.Booking, error)
	ListBookingsByWalker(ctx context.Context, walkerID string, limit int) ([]model.Booking, error)
	ListPack(ctx context.Context, walkBlockID string) ([]model.PackMember, error)
	ListDogsByOwner(ctx context.Context, ownerID string) ([]model.Dog, error)
	ListDogsByWalker(ctx context.Context, walkerID string) ([]model.Dog, error)
}

// EligibilityChecker enforces the meet & greet precondition.
type EligibilityChecker interface {
	Check(ctx context.Context, dogID, walkerID string) error
}

// Authorizer performs capability checks for walker-facing reads.
type Authorizer interface {
	ResolveWalker(ctx context.Context, p access.Principal) (*model.Walker, error)
	AuthorizeBlockOwner(ctx context.Context, p access.Principal, block *model.WalkBlock) error
}

// RateLimiter bounds booking requests per customer.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventPublisher publishes booking lifecycle events.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// Options tunes request validation.
type Options struct {
	Location      *time.Location
	RequestLimit  int
	RequestWindow time.Duration
	Now           func() time.Time
}

// Ledger creates and lists bookings.
type Ledger struct {
	store   Store
	gate    EligibilityChecker
	auth    Authorizer
	limiter RateLimiter
	events  EventPublisher
	opts    Options
	logger  zerolog.Logger
}

// New creates a ledger. limiter and publisher may be nil.
func New(store Store, gate EligibilityChecker, auth Authorizer, limiter RateLimiter, publisher EventPublisher, opts Options, logger *zerolog.Logger) *Ledger {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Ledger{
		store:   store,
		gate:    gate,
		auth:    auth,
		limiter: limiter,
		events:  publisher,
		opts:    opts,
		logger:  logger.With().Str("component", "ledger").Logger(),
	}
}

// RequestBooking records a pending booking of dogID on walkBlockID for the
// calling customer. Requests are not capacity limited; admission decides.
func (l *Ledger) RequestBooking(ctx context.Context, p access.Principal, walkBlockID, dogID string) (*model.Booking, error) {
	booking, err := l.requestBooking(ctx, p, walkBlockID, dogID)
	metrics.IncBookingRequest(resultLabel(err))
	if err != nil {
		if model.IsStorageError(err) {
			l.logger.Error().Err(err).Str("walk_block_id", walkBlockID).Str("dog_id", dogID).Msg("booking request failed")
		} else {
			l.logger.Debug().Err(err).Str("walk_block_id", walkBlockID).Str("dog_id", dogID).Msg("booking request refused")
		}
		return nil, err
	}

	l.logger.Info().
		Str("booking_id", booking.ID).
		Str("walk_block_id", booking.WalkBlockID).
		Str("customer_id", booking.CustomerID).
		Str("dog_id", booking.DogID).
		Msg("booking requested")
	l.publish(events.BookingRequested, booking, p.String())
	return booking, nil
}

func (l *Ledger) requestBooking(ctx context.Context, p access.Principal, walkBlockID, dogID string) (*model.Booking, error) {
	if err := access.RequireAccount(p); err != nil {
		return nil, err
	}
	if walkBlockID == "" || dogID == "" {
		return nil, fmt.Errorf("%w: walk block and dog are required", model.ErrInvalidInput)
	}

	block, err := l.store.GetWalkBlock(ctx, walkBlockID)
	if err != nil {
		return nil, err
	}

	past, err := block.IsPast(l.opts.Now().In(l.opts.Location))
	if err != nil {
		return nil, err
	}
	if past {
		return nil, fmt.Errorf("%w: %s %s", model.ErrWalkBlockInPast, block.Date, block.StartTime)
	}

	dog, err := l.store.GetDog(ctx, dogID)
	if err != nil {
		return nil, err
	}
	if dog.OwnerID != p.AccountID {
		return nil, &access.AccessDeniedError{Reason: "dog belongs to another customer"}
	}

	if err := l.gate.Check(ctx, dogID, block.WalkerID); err != nil {
		return nil, err
	}

	// Retries of an existing request are refused before they spend quota. The
	// insert repeats this check inside its transaction for concurrent requests.
	existing, err := l.store.FindActiveBooking(ctx, block.ID, p.AccountID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: booking %s is %s", model.ErrDuplicateBooking, existing.ID, existing.Status)
	case !errors.Is(err, model.ErrNotFound):
		return nil, err
	}

	if err := l.allow(ctx, p.AccountID); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		ID:          uuid.NewString(),
		WalkBlockID: block.ID,
		CustomerID:  p.AccountID,
		DogID:       dogID,
	}
	if err := l.store.InsertPendingBooking(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// allow consults the rate limiter. Limiter failures let the request through.
func (l *Ledger) allow(ctx context.Context, customerID string) error {
	if l.limiter == nil {
		return nil
	}
	ok, err := l.limiter.Allow(ctx, "booking:"+customerID, l.opts.RequestLimit, l.opts.RequestWindow)
	if err != nil {
		l.logger.Warn().Err(err).Str("customer_id", customerID).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: customer %s", model.ErrRateLimited, customerID)
	}
	return nil
}

// ListBookings returns every booking of a walk block, newest first. Only the
// walker owning the block may read them.
func (l *Ledger) ListBookings(ctx context.Context, p access.Principal, walkBlockID string) ([]model.Booking, error) {
	block, err := l.store.GetWalkBlock(ctx, walkBlockID)
	if err != nil {
		return nil, err
	}
	if err := l.auth.AuthorizeBlockOwner(ctx, p, block); err != nil {
		return nil, err
	}
	return l.store.ListBookingsByBlock(ctx, walkBlockID)
}

// ListMyBookings returns the caller's bookings, newest first.
func (l *Ledger) ListMyBookings(ctx context.Context, p access.Principal) ([]model.Booking, error) {
	if err := access.RequireAccount(p); err != nil {
		return nil, err
	}
	return l.store.ListBookingsByCustomer(ctx, p.AccountID)
}

// MyBookingForBlock returns the caller's non-rejected booking for a block,
// or ErrNotFound.
func (l *Ledger) MyBookingForBlock(ctx context.Context, p access.Principal, walkBlockID string) (*model.Booking, error) {
	if err := access.RequireAccount(p); err != nil {
		return nil, err
	}
	return l.store.FindActiveBooking(ctx, walkBlockID, p.AccountID)
}

// ListWalkerBookings returns bookings across the calling walker's blocks,
// newest first. limit <= 0 returns all of them.
func (l *Ledger) ListWalkerBookings(ctx context.Context, p access.Principal, limit int) ([]model.Booking, error) {
	walker, err := l.auth.ResolveWalker(ctx, p)
	if err != nil {
		return nil, err
	}
	return l.store.ListBookingsByWalker(ctx, walker.ID, limit)
}

// Pack returns the approved dogs of a walk block.
func (l *Ledger) Pack(ctx context.Context, walkBlockID string) ([]model.PackMember, error) {
	if _, err := l.store.GetWalkBlock(ctx, walkBlockID); err != nil {
		return nil, err
	}
	return l.store.ListPack(ctx, walkBlockID)
}

// ListMyDogs returns the dogs owned by the caller.
func (l *Ledger) ListMyDogs(ctx context.Context, p access.Principal) ([]model.Dog, error) {
	if err := access.RequireAccount(p); err != nil {
		return nil, err
	}
	return l.store.ListDogsByOwner(ctx, p.AccountID)
}

// ListWalkerDogs returns the dogs associated with the calling walker.
func (l *Ledger) ListWalkerDogs(ctx context.Context, p access.Principal) ([]model.Dog, error) {
	walker, err := l.auth.ResolveWalker(ctx, p)
	if err != nil {
		return nil, err
	}
	return l.store.ListDogsByWalker(ctx, walker.ID)
}

func (l *Ledger) publish(eventType string, booking *model.Booking, actor string) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishJSON(eventType, events.NewBookingPayload(booking, actor)); err != nil {
		l.logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("failed to publish booking event")
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, model.ErrEligibility):
		return "not_eligible"
	case errors.Is(err, model.ErrDuplicateBooking):
		return "duplicate"
	case errors.Is(err, model.ErrWalkBlockInPast):
		return "in_past"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrForbidden):
		return "forbidden"
	case errors.Is(err, model.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
