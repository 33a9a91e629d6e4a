// Package eligibility decides whether a dog may be booked with a walker.
package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"walkpack/internal/model"
)

// RelationshipReader reads the dog-walker relationship record.
type RelationshipReader interface {
	GetDogRelationship(ctx context.Context, dogID string) (*model.DogRelationship, error)
}

// Gate checks the meet & greet precondition.
type Gate struct {
	relationships RelationshipReader
	logger        zerolog.Logger
}

// NewGate creates a gate backed by the directory.
func NewGate(relationships RelationshipReader, logger zerolog.Logger) *Gate {
	return &Gate{
		relationships: relationships,
		logger:        logger.With().Str("component", "eligibility").Logger(),
	}
}

// IsEligible reports whether the dog is currently associated with walkerID
// and has completed meet & greet. A missing relationship yields false.
func (g *Gate) IsEligible(ctx context.Context, dogID, walkerID string) (bool, error) {
	rel, err := g.relationships.GetDogRelationship(ctx, dogID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("eligibility lookup for dog %s: %w", dogID, err)
	}
	if rel == nil {
		return false, nil
	}
	return rel.WalkerID == walkerID && rel.MeetAndGreetCompleted, nil
}

// Check is IsEligible expressed as an error: ErrEligibility when the dog may
// not be booked with walkerID.
func (g *Gate) Check(ctx context.Context, dogID, walkerID string) error {
	ok, err := g.IsEligible(ctx, dogID, walkerID)
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Debug().
			Str("dog_id", dogID).
			Str("walker_id", walkerID).
			Msg("meet and greet not completed")
		return fmt.Errorf("%w: dog %s with walker %s", model.ErrEligibility, dogID, walkerID)
	}
	return nil
}
