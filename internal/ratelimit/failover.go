package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverLimiter uses primary until it fails, then serves from fallback and
// retries primary once per recoveryInterval.
type FailoverLimiter struct {
	primary  Limiter
	fallback Limiter
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

// NewFailoverLimiter wraps primary with fallback.
func NewFailoverLimiter(primary, fallback Limiter, logger *zerolog.Logger) *FailoverLimiter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverLimiter{primary: primary, fallback: fallback, logger: logger}
}

func (f *FailoverLimiter) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) >= recoveryInterval {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverLimiter) markDown(err error) {
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Msg("Rate limiter primary unavailable, switching to fallback")
	}
}

// Allow consults primary when healthy, fallback otherwise.
func (f *FailoverLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Allow(ctx, key, limit, window)
		if err == nil {
			if f.isDown.Swap(false) {
				f.logger.Info().Msg("Rate limiter primary recovered")
			}
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.Allow(ctx, key, limit, window)
}
