package ratelimit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "c1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "c1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other keys have their own window.
	ok, err = l.Allow(ctx, "c2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Minute, mr.TTL("walkpack:ratelimit:c1"))
	mr.FastForward(time.Minute + time.Second)

	ok, err = l.Allow(ctx, "c1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_CounterWithoutTTLGetsOne(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// A counter left behind with no expiry must not block the key forever.
	require.NoError(t, mr.Set("walkpack:ratelimit:c1", "5"))
	assert.Equal(t, time.Duration(0), mr.TTL("walkpack:ratelimit:c1"))

	l := NewRedisLimiter(client, "")
	ok, err := l.Allow(context.Background(), "c1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("walkpack:ratelimit:c1"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = l.Allow(context.Background(), "c1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisLimiter(client, "").Allow(context.Background(), "c1", 3, time.Minute)
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "c1", 2, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "c1", 2, time.Hour)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "c1", 0, time.Hour)
	assert.True(t, ok, "zero limit disables limiting")
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverLimiter(t *testing.T) {
	primary := new(mockLimiter)
	fallback := new(mockLimiter)
	logger := zerolog.New(io.Discard)
	l := NewFailoverLimiter(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "c1", 5, time.Minute).Return(true, nil).Once()

		ok, err := l.Allow(ctx, "c1", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "c2", 5, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("Allow", ctx, "c2", 5, time.Minute).Return(true, nil).Once()

		ok, err := l.Allow(ctx, "c2", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, l.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Allow", ctx, "c3", 5, time.Minute).Return(false, nil).Once()

		ok, err := l.Allow(ctx, "c3", 5, time.Minute)
		assert.NoError(t, err)
		assert.False(t, ok)
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "Allow", ctx, "c3", 5, time.Minute)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		l.isDown.Store(true)
		l.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("Allow", ctx, "c4", 5, time.Minute).Return(true, nil).Once()

		ok, err := l.Allow(ctx, "c4", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, l.isDown.Load())
		primary.AssertExpectations(t)
	})
}
