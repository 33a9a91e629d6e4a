package model

import "time"

// BookingStatus is the booking lifecycle state.
type BookingStatus string

const (
	StatusPending  BookingStatus = "pending"
	StatusApproved BookingStatus = "approved"
	StatusRejected BookingStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s BookingStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Only pending bookings move, and only forward.
func CanTransition(from, to BookingStatus) bool {
	return from == StatusPending && to.Terminal()
}

// Booking is a customer's request to include one dog in a walk block.
type Booking struct {
	ID          string        `json:"id"`
	WalkBlockID string        `json:"walk_block_id"`
	CustomerID  string        `json:"customer_id"`
	DogID       string        `json:"dog_id"`
	Status      BookingStatus `json:"status"`
	Version     int64         `json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Active reports whether the booking still counts toward the one-per-customer rule.
func (b *Booking) Active() bool {
	return b.Status != StatusRejected
}

// PackMember is an approved booking with the dog's display fields.
type PackMember struct {
	BookingID string `json:"booking_id"`
	DogID     string `json:"dog_id"`
	DogName   string `json:"dog_name"`
	Breed     string `json:"breed,omitempty"`
	Age       int    `json:"age,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}
