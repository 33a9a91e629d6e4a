package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"walkpack/internal/model"
)

// TransitionBooking moves a pending booking to approved or rejected in one
// immediate transaction. For approvals the block's approved count is re-read
// under the write lock and the flip is refused with ErrCapacityExceeded when
// no slot is left. The UPDATE is conditioned on the booking still being
// pending at the version read, so a concurrent decision yields ErrStaleBooking.
// Nothing is committed on any failure.
func (db *DB) TransitionBooking(ctx context.Context, bookingID string, to model.BookingStatus) (*model.Booking, error) {
	if !to.Terminal() {
		return nil, fmt.Errorf("%w: cannot transition to %q", model.ErrInvalidInput, to)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.NewStorageError("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("booking %s", bookingID)
	}
	if err != nil {
		return nil, model.NewStorageError("load booking", err)
	}

	if !model.CanTransition(booking.Status, to) {
		return booking, fmt.Errorf("%w: booking %s is %s", model.ErrStaleBooking, booking.ID, booking.Status)
	}

	if to == model.StatusApproved {
		block, err := scanWalkBlock(tx.QueryRowContext(ctx,
			`SELECT `+walkBlockColumns+` FROM walk_blocks WHERE id = ?`, booking.WalkBlockID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundf("walk block %s", booking.WalkBlockID)
		}
		if err != nil {
			return nil, model.NewStorageError("load walk block", err)
		}

		var approved int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE walk_block_id = ? AND status = 'approved'`,
			booking.WalkBlockID,
		).Scan(&approved); err != nil {
			return nil, model.NewStorageError("count approved", err)
		}

		if approved >= block.EffectiveCapacity() {
			return booking, fmt.Errorf("%w: %d of %d slots taken", model.ErrCapacityExceeded, approved, block.EffectiveCapacity())
		}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'pending' AND version = ?`,
		to, now, booking.ID, booking.Version,
	)
	if err != nil {
		return nil, model.NewStorageError("update booking status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, model.NewStorageError("update booking status", err)
	}
	if affected == 0 {
		return booking, fmt.Errorf("%w: booking %s changed concurrently", model.ErrStaleBooking, booking.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, model.NewStorageError("commit transition", err)
	}

	booking.Status = to
	booking.Version++
	booking.UpdatedAt = now
	return booking, nil
}
