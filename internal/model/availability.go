package model

import "fmt"

// AvailabilitySnapshot is derived on demand and never persisted.
type AvailabilitySnapshot struct {
	WalkBlockID    string `json:"walk_block_id"`
	Capacity       int    `json:"capacity"`
	ApprovedCount  int    `json:"approved_count"`
	SlotsRemaining int    `json:"slots_remaining"`
}

// NewAvailabilitySnapshot computes remaining slots, clamped at zero.
func NewAvailabilitySnapshot(block *WalkBlock, approved int) AvailabilitySnapshot {
	capacity := block.EffectiveCapacity()
	remaining := capacity - approved
	if remaining < 0 {
		remaining = 0
	}
	return AvailabilitySnapshot{
		WalkBlockID:    block.ID,
		Capacity:       capacity,
		ApprovedCount:  approved,
		SlotsRemaining: remaining,
	}
}

// FullyBooked reports whether no slot is left.
func (s AvailabilitySnapshot) FullyBooked() bool {
	return s.SlotsRemaining == 0
}

// Label is the directory/detail page text for the snapshot.
func (s AvailabilitySnapshot) Label() string {
	if s.FullyBooked() {
		return "Fully Booked"
	}
	return fmt.Sprintf("%d of %d", s.SlotsRemaining, s.Capacity)
}
