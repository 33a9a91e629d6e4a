// Package access provides capability checks for booking operations.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"walkpack/internal/model"
)

// Principal identifies the caller of an operation. Authentication happens
// upstream; the core only receives the resolved account id.
type Principal struct {
	AccountID string
	System    bool
}

// SystemPrincipal is the auto-admission caller. It may decide on any block.
var SystemPrincipal = Principal{System: true}

// Customer returns a principal for an authenticated account.
func Customer(accountID string) Principal {
	return Principal{AccountID: accountID}
}

func (p Principal) String() string {
	if p.System {
		return "system"
	}
	return p.AccountID
}

// WalkerResolver maps accounts to walker profiles.
type WalkerResolver interface {
	GetWalkerByAccount(ctx context.Context, accountID string) (*model.Walker, error)
}

// Service implements capability checks.
type Service struct {
	walkers WalkerResolver
	logger  zerolog.Logger
}

// NewService creates a new access control service.
func NewService(walkers WalkerResolver, logger zerolog.Logger) *Service {
	return &Service{
		walkers: walkers,
		logger:  logger.With().Str("component", "access").Logger(),
	}
}

// RequireAccount fails unless the principal carries an account id.
func RequireAccount(p Principal) error {
	if p.System || p.AccountID == "" {
		return &AccessDeniedError{Reason: "an authenticated account is required"}
	}
	return nil
}

// ResolveWalker returns the walker profile linked to the principal's account.
func (s *Service) ResolveWalker(ctx context.Context, p Principal) (*model.Walker, error) {
	if err := RequireAccount(p); err != nil {
		return nil, err
	}
	walker, err := s.walkers.GetWalkerByAccount(ctx, p.AccountID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, &AccessDeniedError{Reason: "account is not a walker"}
	}
	if err != nil {
		return nil, fmt.Errorf("resolving walker for account %s: %w", p.AccountID, err)
	}
	return walker, nil
}

// AuthorizeBlockOwner checks that the principal may decide on bookings of block:
// the system principal always may, otherwise the caller must be its walker.
func (s *Service) AuthorizeBlockOwner(ctx context.Context, p Principal, block *model.WalkBlock) error {
	if p.System {
		return nil
	}
	walker, err := s.ResolveWalker(ctx, p)
	if err != nil {
		return err
	}
	if walker.ID != block.WalkerID {
		s.logger.Warn().
			Str("account_id", p.AccountID).
			Str("walk_block_id", block.ID).
			Msg("walk block owned by another walker")
		return &AccessDeniedError{Reason: "walk block belongs to another walker"}
	}
	return nil
}

// AccessDeniedError is returned when a capability check fails.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// Is makes AccessDeniedError match model.ErrForbidden.
func (e *AccessDeniedError) Is(target error) bool {
	return target == model.ErrForbidden
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
