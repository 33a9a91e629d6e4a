package model

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Walker is a walker's public profile. UserID links it to the account that owns it.
type Walker struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	About     string    `json:"about,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dog is owned by a customer and associated with at most one walker at a time.
type Dog struct {
	ID                    string    `json:"id"`
	OwnerID               string    `json:"owner_id"`
	Name                  string    `json:"name"`
	Breed                 string    `json:"breed,omitempty"`
	Age                   int       `json:"age,omitempty"`
	PhotoURL              string    `json:"photo_url,omitempty"`
	WalkerID              string    `json:"walker_id,omitempty"`
	MeetAndGreetCompleted bool      `json:"meet_and_greet_done"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DogRelationship is the dog-walker link the eligibility check reads.
type DogRelationship struct {
	DogID                 string
	WalkerID              string
	MeetAndGreetCompleted bool
}

// WalkBlock is a single scheduled walking session with a fixed capacity.
type WalkBlock struct {
	ID          string    `json:"id"`
	WalkerID    string    `json:"walker_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"`       // YYYY-MM-DD
	StartTime   string    `json:"start_time"` // HH:MM
	EndTime     string    `json:"end_time"`   // HH:MM
	IsGroup     bool      `json:"is_group"`
	Capacity    int       `json:"capacity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectiveCapacity is the number of dogs admission may approve.
// Solo blocks admit a single dog whatever capacity was stored.
func (b *WalkBlock) EffectiveCapacity() int {
	if b.Capacity < 1 {
		return 0
	}
	if !b.IsGroup {
		return 1
	}
	return b.Capacity
}

// StartsAt resolves the block start in loc.
func (b *WalkBlock) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, b.Date+" "+b.StartTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("walk block %s: parse start: %w", b.ID, err)
	}
	return t, nil
}

// IsPast reports whether the block has already started at now.
func (b *WalkBlock) IsPast(now time.Time) (bool, error) {
	start, err := b.StartsAt(now.Location())
	if err != nil {
		return false, err
	}
	return !start.After(now), nil
}

// Validate checks a walk block definition before it is stored.
func (b *WalkBlock) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: walk block id is required", ErrInvalidInput)
	}
	if b.WalkerID == "" {
		return fmt.Errorf("%w: walk block %s: walker_id is required", ErrInvalidInput, b.ID)
	}
	if _, err := time.Parse(DateLayout, b.Date); err != nil {
		return fmt.Errorf("%w: walk block %s: invalid date '%s', expected YYYY-MM-DD", ErrInvalidInput, b.ID, b.Date)
	}
	start, err := time.Parse(ClockLayout, b.StartTime)
	if err != nil {
		return fmt.Errorf("%w: walk block %s: invalid start_time '%s', expected HH:MM", ErrInvalidInput, b.ID, b.StartTime)
	}
	end, err := time.Parse(ClockLayout, b.EndTime)
	if err != nil {
		return fmt.Errorf("%w: walk block %s: invalid end_time '%s', expected HH:MM", ErrInvalidInput, b.ID, b.EndTime)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: walk block %s: end_time must be after start_time", ErrInvalidInput, b.ID)
	}
	if b.Capacity < 1 {
		return fmt.Errorf("%w: walk block %s: capacity must be at least 1", ErrInvalidInput, b.ID)
	}
	if !b.IsGroup && b.Capacity != 1 {
		return fmt.Errorf("%w: walk block %s: solo walk must have capacity 1, got %d", ErrInvalidInput, b.ID, b.Capacity)
	}
	return nil
}
