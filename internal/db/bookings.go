package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"walkpack/internal/model"
)

const bookingColumns = `id, walk_block_id, customer_id, dog_id, status, version, created_at, updated_at`

func scanBooking(s scanner) (*model.Booking, error) {
	var b model.Booking
	if err := s.Scan(
		&b.ID, &b.WalkBlockID, &b.CustomerID, &b.DogID, &b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// InsertPendingBooking stores b as a new pending booking. Inside one
// transaction it refuses a second non-rejected booking for the same
// (walk block, customer); the partial unique index backs the same rule.
func (db *DB) InsertPendingBooking(ctx context.Context, b *model.Booking) error {
	if b == nil {
		return fmt.Errorf("%w: booking is nil", model.ErrInvalidInput)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewStorageError("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE walk_block_id = ? AND customer_id = ? AND status != 'rejected'`,
		b.WalkBlockID, b.CustomerID,
	).Scan(&exists)
	if err != nil {
		return model.NewStorageError("check existing booking", err)
	}
	if exists > 0 {
		return model.ErrDuplicateBooking
	}

	now := b.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	b.Status = model.StatusPending
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.WalkBlockID, b.CustomerID, b.DogID, b.Status, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicateBooking
	}
	if err != nil {
		return model.NewStorageError("insert booking", err)
	}

	if err := tx.Commit(); err != nil {
		return model.NewStorageError("commit booking", err)
	}
	return nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("booking %s", id)
	}
	if err != nil {
		return nil, model.NewStorageError("get booking", err)
	}
	return b, nil
}

// FindActiveBooking returns the customer's non-rejected booking for a block.
func (db *DB) FindActiveBooking(ctx context.Context, walkBlockID, customerID string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE walk_block_id = ? AND customer_id = ? AND status != 'rejected'
		LIMIT 1`,
		walkBlockID, customerID,
	)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("booking for customer %s on walk block %s", customerID, walkBlockID)
	}
	if err != nil {
		return nil, model.NewStorageError("find active booking", err)
	}
	return b, nil
}

// ListBookingsByBlock returns every booking of a walk block, newest first.
func (db *DB) ListBookingsByBlock(ctx context.Context, walkBlockID string) ([]model.Booking, error) {
	return db.listBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE walk_block_id = ?
		ORDER BY created_at DESC, id DESC`, walkBlockID)
}

// ListPendingByBlock returns pending bookings of a walk block, oldest first.
func (db *DB) ListPendingByBlock(ctx context.Context, walkBlockID string) ([]model.Booking, error) {
	return db.listBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE walk_block_id = ? AND status = 'pending'
		ORDER BY created_at, id`, walkBlockID)
}

// ListBookingsByCustomer returns a customer's bookings, newest first.
func (db *DB) ListBookingsByCustomer(ctx context.Context, customerID string) ([]model.Booking, error) {
	return db.listBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC`, customerID)
}

// ListBookingsByWalker returns bookings across all of the walker's blocks,
// newest first. limit <= 0 means no limit.
func (db *DB) ListBookingsByWalker(ctx context.Context, walkerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = -1
	}
	return db.listBookings(ctx, `
		SELECT b.id, b.walk_block_id, b.customer_id, b.dog_id, b.status, b.version, b.created_at, b.updated_at
		FROM bookings b
		JOIN walk_blocks wb ON wb.id = b.walk_block_id
		WHERE wb.walker_id = ?
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT ?`, walkerID, limit)
}

func (db *DB) listBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.NewStorageError("list bookings", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, model.NewStorageError("scan booking", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list bookings", err)
	}
	return bookings, nil
}

// ListPack returns the approved bookings of a block with dog display fields.
func (db *DB) ListPack(ctx context.Context, walkBlockID string) ([]model.PackMember, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.id, d.id, d.name, d.breed, d.age, d.photo_url
		FROM bookings b
		JOIN dogs d ON d.id = b.dog_id
		WHERE b.walk_block_id = ? AND b.status = 'approved'
		ORDER BY b.updated_at, b.id`, walkBlockID)
	if err != nil {
		return nil, model.NewStorageError("list pack", err)
	}
	defer rows.Close()

	var pack []model.PackMember
	for rows.Next() {
		var m model.PackMember
		if err := rows.Scan(&m.BookingID, &m.DogID, &m.DogName, &m.Breed, &m.Age, &m.PhotoURL); err != nil {
			return nil, model.NewStorageError("scan pack member", err)
		}
		pack = append(pack, m)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list pack", err)
	}
	return pack, nil
}

// GetAvailability reads a block and its approved count in a single statement,
// so both values come from the same committed state.
func (db *DB) GetAvailability(ctx context.Context, walkBlockID string) (*model.WalkBlock, int, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+walkBlockColumns+`,
			(SELECT COUNT(*) FROM bookings WHERE walk_block_id = walk_blocks.id AND status = 'approved')
		FROM walk_blocks WHERE id = ?`, walkBlockID)

	var b model.WalkBlock
	var approved int
	err := row.Scan(
		&b.ID, &b.WalkerID, &b.Title, &b.Description, &b.Date, &b.StartTime, &b.EndTime,
		&b.IsGroup, &b.Capacity, &b.CreatedAt, &b.UpdatedAt, &approved,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, model.NotFoundf("walk block %s", walkBlockID)
	}
	if err != nil {
		return nil, 0, model.NewStorageError("get availability", err)
	}
	return &b, approved, nil
}

// CountApproved returns the number of approved bookings of a block.
func (db *DB) CountApproved(ctx context.Context, walkBlockID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE walk_block_id = ? AND status = 'approved'`, walkBlockID,
	).Scan(&n)
	if err != nil {
		return 0, model.NewStorageError("count approved", err)
	}
	return n, nil
}
