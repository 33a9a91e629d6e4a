// Package availability projects capacity against approved bookings.
package availability

import (
	"context"
	"time"

	"walkpack/internal/model"
)

// Store reads blocks together with their committed approved count.
type Store interface {
	GetAvailability(ctx context.Context, walkBlockID string) (*model.WalkBlock, int, error)
	ListWalkBlocksByWalker(ctx context.Context, walkerID, fromDate string, limit int) ([]model.WalkBlock, error)
}

// BlockAvailability is a walk block with its current snapshot.
type BlockAvailability struct {
	Block        model.WalkBlock            `json:"walk_block"`
	Availability model.AvailabilitySnapshot `json:"availability"`
	Label        string                     `json:"label"`
}

// View computes availability on every call. Nothing is cached.
type View struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

// NewView creates a view; loc decides what "today" means for listings.
func NewView(store Store, loc *time.Location) *View {
	if loc == nil {
		loc = time.UTC
	}
	return &View{store: store, loc: loc, now: time.Now}
}

// Snapshot reads capacity and approved count in one statement.
func (v *View) Snapshot(ctx context.Context, walkBlockID string) (model.AvailabilitySnapshot, error) {
	block, approved, err := v.store.GetAvailability(ctx, walkBlockID)
	if err != nil {
		return model.AvailabilitySnapshot{}, err
	}
	return model.NewAvailabilitySnapshot(block, approved), nil
}

// Detail returns the block together with its snapshot from the same read.
func (v *View) Detail(ctx context.Context, walkBlockID string) (*model.WalkBlock, model.AvailabilitySnapshot, error) {
	block, approved, err := v.store.GetAvailability(ctx, walkBlockID)
	if err != nil {
		return nil, model.AvailabilitySnapshot{}, err
	}
	return block, model.NewAvailabilitySnapshot(block, approved), nil
}

// SlotsRemaining is capacity minus approved bookings, never below zero.
func (v *View) SlotsRemaining(ctx context.Context, walkBlockID string) (int, error) {
	s, err := v.Snapshot(ctx, walkBlockID)
	if err != nil {
		return 0, err
	}
	return s.SlotsRemaining, nil
}

// Label renders a snapshot as "N of M" spots left, or "Fully Booked".
func Label(s model.AvailabilitySnapshot) string {
	return s.Label()
}

// UpcomingForWalker lists the walker's blocks dated today or later with
// their availability, earliest first. limit <= 0 lists all of them.
func (v *View) UpcomingForWalker(ctx context.Context, walkerID string, limit int) ([]BlockAvailability, error) {
	today := v.now().In(v.loc).Format(model.DateLayout)
	blocks, err := v.store.ListWalkBlocksByWalker(ctx, walkerID, today, limit)
	if err != nil {
		return nil, err
	}

	out := make([]BlockAvailability, 0, len(blocks))
	for _, b := range blocks {
		snap, err := v.Snapshot(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, BlockAvailability{Block: b, Availability: snap, Label: snap.Label()})
	}
	return out, nil
}
