package availability

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"walkpack/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetAvailability(ctx context.Context, id string) (*model.WalkBlock, int, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*model.WalkBlock), args.Int(1), args.Error(2)
}

func (m *mockStore) ListWalkBlocksByWalker(ctx context.Context, walkerID, fromDate string, limit int) ([]model.WalkBlock, error) {
	args := m.Called(ctx, walkerID, fromDate, limit)
	return args.Get(0).([]model.WalkBlock), args.Error(1)
}

func TestView_SlotsRemaining(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		block    *model.WalkBlock
		approved int
		want     int
		label    string
	}{
		{"open group", &model.WalkBlock{ID: "b", IsGroup: true, Capacity: 4}, 1, 3, "3 of 4"},
		{"full group", &model.WalkBlock{ID: "b", IsGroup: true, Capacity: 2}, 2, 0, "Fully Booked"},
		{"over capacity clamps", &model.WalkBlock{ID: "b", IsGroup: true, Capacity: 2}, 3, 0, "Fully Booked"},
		{"solo ignores stored capacity", &model.WalkBlock{ID: "b", Capacity: 3}, 0, 1, "1 of 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			store.On("GetAvailability", ctx, "b").Return(tt.block, tt.approved, nil)
			v := NewView(store, nil)

			got, err := v.SlotsRemaining(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			snap, err := v.Snapshot(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, tt.label, Label(snap))
		})
	}
}

func TestView_NotFound(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetAvailability", ctx, "nope").Return(nil, 0, model.NotFoundf("walk block nope"))

	_, err := NewView(store, nil).SlotsRemaining(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestView_UpcomingForWalker(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	store := new(mockStore)
	v := NewView(store, loc)
	// 02:00 UTC is still the previous day in New York.
	v.now = func() time.Time { return time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC) }

	blocks := []model.WalkBlock{
		{ID: "a", Date: "2026-03-10", IsGroup: true, Capacity: 3},
		{ID: "b", Date: "2026-03-12", IsGroup: false, Capacity: 1},
	}
	store.On("ListWalkBlocksByWalker", ctx, "w1", "2026-03-10", 5).Return(blocks, nil).Once()
	store.On("GetAvailability", ctx, "a").Return(&blocks[0], 1, nil).Once()
	store.On("GetAvailability", ctx, "b").Return(&blocks[1], 1, nil).Once()

	got, err := v.UpcomingForWalker(ctx, "w1", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2 of 3", got[0].Label)
	assert.True(t, got[1].Availability.FullyBooked())
	store.AssertExpectations(t)

	store.On("ListWalkBlocksByWalker", ctx, "w2", "2026-03-10", 0).Return([]model.WalkBlock(nil), errors.New("boom")).Once()
	_, err = v.UpcomingForWalker(ctx, "w2", 0)
	assert.Error(t, err)
}
