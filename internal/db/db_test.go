package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkpack/internal/config"
	"walkpack/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func testDirectory() *config.Directory {
	date := time.Now().AddDate(0, 0, 7).Format(model.DateLayout)
	return &config.Directory{
		Walkers: []config.WalkerConfig{
			{ID: "w1", UserID: "acct-walker-1", Name: "Sam"},
			{ID: "w2", UserID: "acct-walker-2", Name: "Alex"},
		},
		Dogs: []config.DogConfig{
			{ID: "d1", OwnerID: "c1", Name: "Rex", Breed: "Collie", WalkerID: "w1", MeetAndGreet: true},
			{ID: "d2", OwnerID: "c2", Name: "Bo", WalkerID: "w1", MeetAndGreet: true},
			{ID: "d3", OwnerID: "c3", Name: "Luna", WalkerID: "w1", MeetAndGreet: true},
			{ID: "d4", OwnerID: "c4", Name: "Pip"},
		},
		WalkBlocks: []config.WalkBlockConfig{
			{ID: "g1", WalkerID: "w1", Title: "Park pack", Date: date, StartTime: "09:00", EndTime: "10:00", IsGroup: true, Capacity: 2},
			{ID: "s1", WalkerID: "w1", Title: "Solo stroll", Date: date, StartTime: "11:00", EndTime: "11:30", Capacity: 1},
			{ID: "g2", WalkerID: "w2", Title: "Beach", Date: date, StartTime: "09:00", EndTime: "10:00", IsGroup: true, Capacity: 5},
		},
	}
}

func seededDB(t *testing.T) *DB {
	t.Helper()
	d := newTestDB(t)
	require.NoError(t, d.SyncDirectory(context.Background(), testDirectory()))
	return d
}

func insertPending(t *testing.T, d *DB, id, blockID, customerID, dogID string) *model.Booking {
	t.Helper()
	b := &model.Booking{ID: id, WalkBlockID: blockID, CustomerID: customerID, DogID: dogID}
	require.NoError(t, d.InsertPendingBooking(context.Background(), b))
	return b
}

func TestSyncDirectory(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()

	block, err := d.GetWalkBlock(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "w1", block.WalkerID)
	assert.Equal(t, 2, block.Capacity)
	assert.True(t, block.IsGroup)

	walker, err := d.GetWalkerByAccount(ctx, "acct-walker-2")
	require.NoError(t, err)
	assert.Equal(t, "w2", walker.ID)

	dog, err := d.GetDog(ctx, "d4")
	require.NoError(t, err)
	assert.Empty(t, dog.WalkerID)

	_, err = d.GetDogRelationship(ctx, "d4")
	assert.ErrorIs(t, err, model.ErrNotFound)

	rel, err := d.GetDogRelationship(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "w1", rel.WalkerID)
	assert.True(t, rel.MeetAndGreetCompleted)

	// Re-sync keeps created_at and ignores capacity changes.
	dir := testDirectory()
	dir.WalkBlocks[0].Capacity = 9
	dir.WalkBlocks[0].Title = "Renamed"
	require.NoError(t, d.SyncDirectory(ctx, dir))

	again, err := d.GetWalkBlock(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Capacity)
	assert.Equal(t, "Renamed", again.Title)
	assert.True(t, again.CreatedAt.Equal(block.CreatedAt))
}

func TestSetMeetAndGreet(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()

	require.NoError(t, d.SetMeetAndGreet(ctx, "d4", "w2", true))
	rel, err := d.GetDogRelationship(ctx, "d4")
	require.NoError(t, err)
	assert.Equal(t, "w2", rel.WalkerID)
	assert.True(t, rel.MeetAndGreetCompleted)

	assert.ErrorIs(t, d.SetMeetAndGreet(ctx, "missing", "w2", true), model.ErrNotFound)
}

func TestSyncDirectory_KeepsMeetAndGreetOutcome(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()

	require.NoError(t, d.SetMeetAndGreet(ctx, "d4", "w1", true))
	require.NoError(t, d.SetMeetAndGreet(ctx, "d2", "w2", false))

	require.NoError(t, d.SyncDirectory(ctx, testDirectory()))

	rel, err := d.GetDogRelationship(ctx, "d4")
	require.NoError(t, err)
	assert.Equal(t, "w1", rel.WalkerID)
	assert.True(t, rel.MeetAndGreetCompleted)

	rel, err = d.GetDogRelationship(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, "w2", rel.WalkerID)
	assert.False(t, rel.MeetAndGreetCompleted)

	// Display fields still follow the file.
	dir := testDirectory()
	dir.Dogs[3].Name = "Pippin"
	require.NoError(t, d.SyncDirectory(ctx, dir))
	dog, err := d.GetDog(ctx, "d4")
	require.NoError(t, err)
	assert.Equal(t, "Pippin", dog.Name)
	assert.Equal(t, "w1", dog.WalkerID)
}

func TestSyncDirectory_SeedsWalkerForUnassignedDog(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()

	dir := testDirectory()
	dir.Dogs[3].WalkerID = "w2"
	dir.Dogs[3].MeetAndGreet = true
	require.NoError(t, d.SyncDirectory(ctx, dir))

	rel, err := d.GetDogRelationship(ctx, "d4")
	require.NoError(t, err)
	assert.Equal(t, "w2", rel.WalkerID)
	assert.True(t, rel.MeetAndGreetCompleted)
}

func TestInsertPendingBooking(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()

	b := insertPending(t, d, "b1", "g1", "c1", "d1")
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, int64(1), b.Version)

	stored, err := d.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, "d1", stored.DogID)

	t.Run("duplicate", func(t *testing.T) {
		err := d.InsertPendingBooking(ctx, &model.Booking{ID: "b2", WalkBlockID: "g1", CustomerID: "c1", DogID: "d1"})
		assert.ErrorIs(t, err, model.ErrDuplicateBooking)
	})

	t.Run("rejected booking allows rebooking", func(t *testing.T) {
		_, err := d.TransitionBooking(ctx, "b1", model.StatusRejected)
		require.NoError(t, err)
		insertPending(t, d, "b3", "g1", "c1", "d1")

		active, err := d.FindActiveBooking(ctx, "g1", "c1")
		require.NoError(t, err)
		assert.Equal(t, "b3", active.ID)
	})

	t.Run("nil booking", func(t *testing.T) {
		assert.ErrorIs(t, d.InsertPendingBooking(ctx, nil), model.ErrInvalidInput)
	})
}

func TestTransitionBooking(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()

	insertPending(t, d, "b1", "g1", "c1", "d1")
	insertPending(t, d, "b2", "g1", "c2", "d2")
	insertPending(t, d, "b3", "g1", "c3", "d3")

	approved, err := d.TransitionBooking(ctx, "b1", model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, int64(2), approved.Version)

	_, err = d.TransitionBooking(ctx, "b2", model.StatusApproved)
	require.NoError(t, err)

	_, err = d.TransitionBooking(ctx, "b3", model.StatusApproved)
	assert.ErrorIs(t, err, model.ErrCapacityExceeded)

	still, err := d.GetBooking(ctx, "b3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, still.Status, "capacity refusal must leave the booking pending")

	// Rejection never checks capacity.
	rejected, err := d.TransitionBooking(ctx, "b3", model.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)

	_, err = d.TransitionBooking(ctx, "b1", model.StatusRejected)
	assert.ErrorIs(t, err, model.ErrStaleBooking)

	_, err = d.TransitionBooking(ctx, "missing", model.StatusApproved)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = d.TransitionBooking(ctx, "b1", model.StatusPending)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	n, err := d.CountApproved(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTransitionBooking_ConcurrentApprovalsRespectCapacity(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	dir := testDirectory()
	const requests = 8
	for i := 0; i < requests; i++ {
		dir.Dogs = append(dir.Dogs, config.DogConfig{
			ID: fmt.Sprintf("cd%d", i), OwnerID: fmt.Sprintf("cc%d", i), Name: "Dog", WalkerID: "w1", MeetAndGreet: true,
		})
	}
	require.NoError(t, d.SyncDirectory(ctx, dir))

	for i := 0; i < requests; i++ {
		insertPending(t, d, fmt.Sprintf("cb%d", i), "g1", fmt.Sprintf("cc%d", i), fmt.Sprintf("cd%d", i))
	}

	var wg sync.WaitGroup
	var approvedCount, refusedCount, otherCount int32
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := d.TransitionBooking(ctx, fmt.Sprintf("cb%d", i), model.StatusApproved)
			switch {
			case err == nil:
				atomic.AddInt32(&approvedCount, 1)
			case errors.Is(err, model.ErrCapacityExceeded):
				atomic.AddInt32(&refusedCount, 1)
			default:
				t.Logf("unexpected error: %v", err)
				atomic.AddInt32(&otherCount, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(2), approvedCount)
	assert.Equal(t, int32(requests-2), refusedCount)
	assert.Zero(t, otherCount)

	n, err := d.CountApproved(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTransitionBooking_ConcurrentDecisionsOnSameBooking(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()
	insertPending(t, d, "b1", "g1", "c1", "d1")

	var wg sync.WaitGroup
	var ok, stale int32
	for _, to := range []model.BookingStatus{model.StatusApproved, model.StatusRejected, model.StatusApproved, model.StatusRejected} {
		wg.Add(1)
		go func(to model.BookingStatus) {
			defer wg.Done()
			_, err := d.TransitionBooking(ctx, "b1", to)
			if err == nil {
				atomic.AddInt32(&ok, 1)
			} else if errors.Is(err, model.ErrStaleBooking) {
				atomic.AddInt32(&stale, 1)
			}
		}(to)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(3), stale)

	b, err := d.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, b.Status.Terminal())
	assert.Equal(t, int64(2), b.Version)
}

func TestGetAvailability(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()

	insertPending(t, d, "b1", "g1", "c1", "d1")
	insertPending(t, d, "b2", "g1", "c2", "d2")
	_, err := d.TransitionBooking(ctx, "b1", model.StatusApproved)
	require.NoError(t, err)

	block, approved, err := d.GetAvailability(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", block.ID)
	assert.Equal(t, 1, approved)

	_, _, err = d.GetAvailability(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListings(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()

	insertPending(t, d, "b1", "g1", "c1", "d1")
	insertPending(t, d, "b2", "g1", "c2", "d2")
	insertPending(t, d, "b3", "s1", "c1", "d1")
	insertPending(t, d, "b4", "g2", "c1", "d1")
	_, err := d.TransitionBooking(ctx, "b2", model.StatusApproved)
	require.NoError(t, err)

	byBlock, err := d.ListBookingsByBlock(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, byBlock, 2)

	pending, err := d.ListPendingByBlock(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b1", pending[0].ID)

	mine, err := d.ListBookingsByCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	walker, err := d.ListBookingsByWalker(ctx, "w1", 0)
	require.NoError(t, err)
	assert.Len(t, walker, 3)

	limited, err := d.ListBookingsByWalker(ctx, "w1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	pack, err := d.ListPack(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, pack, 1)
	assert.Equal(t, "Bo", pack[0].DogName)

	blocks, err := d.ListWalkBlocksByWalker(ctx, "w1", time.Now().Format(model.DateLayout), -1)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "g1", blocks[0].ID)

	dogs, err := d.ListDogsByWalker(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, dogs, 3)

	owned, err := d.ListDogsByOwner(ctx, "c4")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "Pip", owned[0].Name)
}

func TestGetTableData(t *testing.T) {
	d := seededDB(t)
	ctx := context.Background()
	insertPending(t, d, "b1", "g1", "c1", "d1")
	insertPending(t, d, "b2", "g2", "c2", "d2")

	names, err := d.GetTableNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "bookings")

	rows, cols, err := d.GetTableData(ctx, "bookings", "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Contains(t, cols, "status")

	rows, _, err = d.GetTableData(ctx, "bookings", "w2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b2", rows[0]["id"])

	_, _, err = d.GetTableData(ctx, "sqlite_master", "")
	assert.Error(t, err)
}
