package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCreatePickupByDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.pickups.Create(ctx, service.CreatePickupParams{
		PickupCode: "QR-1",
		StudentIDs: []string{"s1", "s2"},
		Students:   []models.StudentInfo{{ID: "s2", Name: "Bao", Code: "B-02"}, {ID: "s1", Name: "An", Code: "A-01"}},
		DriverID:   "d1",
	})
	require.NoError(t, err)

	assert.False(t, p.ID.IsZero())
	assert.Equal(t, "p1", p.Parent.ID)
	assert.Equal(t, "lan@example.com", p.Parent.Email)
	assert.Equal(t, models.ActorDriver, p.InitiatedBy.Type)
	assert.Equal(t, "d1", p.InitiatedBy.ID)
	assert.Equal(t, models.StatusPending, p.Status)
	require.Len(t, p.StatusHistory, 1)
	assert.Equal(t, models.StatusPending, p.StatusHistory[0].Status)
	assert.Equal(t, []string{"An", "Bao"}, p.StudentNames, "names follow studentIds order")
	assert.Equal(t, []string{"A-01", "B-02"}, p.StudentCodes)

	created := f.events.OfType(models.EventNewPickup)
	require.Len(t, created, 1)
	assert.Equal(t, models.TopicPickupsGlobal, created[0].Topic)
}

func TestCreatePickupValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	parent := &models.ParentSnapshot{ID: "p1", Name: "Lan Nguyen", Email: "lan@example.com"}

	tests := []struct {
		name   string
		params service.CreatePickupParams
		want   error
	}{
		{"missing code", service.CreatePickupParams{StudentIDs: []string{"s1"}, Parent: parent}, service.ErrMissingRequiredFields},
		{"missing students", service.CreatePickupParams{PickupCode: "QR-1", StudentIDs: []string{" "}, Parent: parent}, service.ErrMissingRequiredFields},
		{"no parent", service.CreatePickupParams{PickupCode: "QR-1", StudentIDs: []string{"s1"}}, service.ErrMissingParentInfo},
		{"incomplete parent", service.CreatePickupParams{PickupCode: "QR-1", StudentIDs: []string{"s1"}, Parent: &models.ParentSnapshot{ID: "p1", Name: "Lan"}}, service.ErrMissingParentInfo},
		{"unknown driver", service.CreatePickupParams{PickupCode: "QR-1", StudentIDs: []string{"s1"}, DriverID: "d9"}, service.ErrDriverNotFound},
		{"driver without parent", service.CreatePickupParams{PickupCode: "QR-1", StudentIDs: []string{"s1"}, DriverID: "d3"}, service.ErrParentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pickups.Create(ctx, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.events.Events(), "rejected creations publish nothing")
}

func TestCreatePickupStaffOverride(t *testing.T) {
	f := newFixture(t)
	p, err := f.pickups.Create(context.Background(), service.CreatePickupParams{
		PickupCode:  "QR-1",
		StudentIDs:  []string{"s1", "s1"},
		Parent:      &models.ParentSnapshot{ID: "p1", Name: "Lan Nguyen", Email: "lan@example.com"},
		InitiatedBy: &models.ActorSnapshot{ID: "staff1", Name: "Front desk", Type: models.ActorStaff},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, p.StudentIDs)
	assert.Equal(t, models.ActorStaff, p.InitiatedBy.Type)
	assert.Equal(t, "staff1", p.StatusHistory[0].UpdatedBy.ID)
}

func TestTransitionCompletesThenRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.parentPickup(t, "s1", "s2")
	f.events.Reset()
	f.clock.Advance(5 * time.Minute)

	done, err := f.pickups.Transition(ctx, service.TransitionParams{
		PickupID:  p.ID.Hex(),
		Status:    models.StatusCompleted,
		UpdatedBy: models.ActorSnapshot{ID: "staff1", Type: models.ActorStaff},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, f.clock.Now(), *done.CompletedAt)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, models.ActorStaff, done.CompletedBy.Type)
	require.Len(t, done.StatusHistory, 2)
	assert.Equal(t, models.StatusPending, done.StatusHistory[0].Status)

	updates := f.events.OfType(models.EventPickupStatusUpdated)
	require.Len(t, updates, 2)
	assert.Equal(t, models.TopicPickupsGlobal, updates[0].Topic)
	assert.Equal(t, models.PickupTopic(p.ID.Hex()), updates[1].Topic)
	payload, ok := updates[0].Payload.(models.StatusUpdatedPayload)
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, payload.Status)

	_, err = f.pickups.Transition(ctx, service.TransitionParams{
		PickupID:  p.ID.Hex(),
		Status:    models.StatusCancelled,
		UpdatedBy: models.ActorSnapshot{ID: "staff2", Type: models.ActorStaff},
	})
	assert.ErrorIs(t, err, service.ErrAlreadyTerminal)

	stored, err := f.pickups.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Len(t, stored.StatusHistory, 2)
	assert.Len(t, f.events.OfType(models.EventPickupStatusUpdated), 2, "rejected transition publishes nothing")
}

func TestTransitionCancel(t *testing.T) {
	f := newFixture(t)
	p := f.parentPickup(t, "s1")

	cancelled, err := f.pickups.Transition(context.Background(), service.TransitionParams{
		PickupID: p.ID.Hex(),
		Status:   models.StatusCancelled,
		Notes:    "picked up by grandparent",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.CompletedAt)
	assert.Nil(t, cancelled.CompletedBy)
	assert.Equal(t, models.ActorStaff, cancelled.StatusHistory[1].UpdatedBy.Type, "actor type defaults to staff")
	assert.Equal(t, "picked up by grandparent", cancelled.StatusHistory[1].Notes)
}

func TestTransitionRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.parentPickup(t, "s1")

	_, err := f.pickups.Transition(ctx, service.TransitionParams{PickupID: p.ID.Hex(), Status: models.StatusPending})
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
	assert.Equal(t, service.KindValidation, service.ErrorKind(err))

	_, err = f.pickups.Transition(ctx, service.TransitionParams{PickupID: p.ID.Hex(), Status: "archived"})
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = f.pickups.Transition(ctx, service.TransitionParams{PickupID: "000000000000000000000000", Status: models.StatusCompleted})
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.pickups.Transition(ctx, service.TransitionParams{Status: models.StatusCompleted})
	assert.ErrorIs(t, err, service.ErrMissingRequiredFields)
}

func TestTerminalStatusNeverChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, first := range []models.PickupStatus{models.StatusCompleted, models.StatusCancelled} {
		p := f.parentPickup(t, "s1")
		_, err := f.pickups.Transition(ctx, service.TransitionParams{PickupID: p.ID.Hex(), Status: first})
		require.NoError(t, err)

		historyLen := 2
		for _, next := range []models.PickupStatus{models.StatusCompleted, models.StatusCancelled, models.StatusPending} {
			_, err := f.pickups.Transition(ctx, service.TransitionParams{PickupID: p.ID.Hex(), Status: next})
			assert.Error(t, err)

			stored, err := f.pickups.Get(ctx, p.ID.Hex())
			require.NoError(t, err)
			assert.Equal(t, first, stored.Status)
			assert.GreaterOrEqual(t, len(stored.StatusHistory), historyLen)
			historyLen = len(stored.StatusHistory)
			assert.Equal(t, models.StatusPending, stored.StatusHistory[0].Status)
		}
	}
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.parentPickup(t, "s1")

	const n = 20
	var (
		mu      sync.Mutex
		winners []models.PickupStatus
		g       errgroup.Group
	)
	for i := 0; i < n; i++ {
		status := models.StatusCompleted
		if i%2 == 1 {
			status = models.StatusCancelled
		}
		g.Go(func() error {
			got, err := f.pickups.Transition(ctx, service.TransitionParams{PickupID: p.ID.Hex(), Status: status})
			if errors.Is(err, service.ErrAlreadyTerminal) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			winners = append(winners, got.Status)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, winners, 1)

	stored, err := f.pickups.Get(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.Status)
	assert.Len(t, stored.StatusHistory, 2)
}

func TestListAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old := f.parentPickup(t, "s1")
	f.clock.Advance(20 * time.Minute)
	fresh := f.parentPickup(t, "s2")
	done := f.parentPickup(t, "s3")
	_, err := f.pickups.Transition(ctx, service.TransitionParams{PickupID: done.ID.Hex(), Status: models.StatusCompleted})
	require.NoError(t, err)

	pending, err := f.pickups.List(ctx, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, fresh.ID, pending[0].ID)
	assert.Equal(t, old.ID, pending[1].ID)

	all, err := f.pickups.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.pickups.List(ctx, "waiting")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	stats, err := f.pickups.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PickupStats{Active: 2, Delayed: 1, Completed: 1, Cancelled: 0}, stats)

	mine, err := f.pickups.ListByParent(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	_, err = f.pickups.ListByParent(ctx, "")
	assert.ErrorIs(t, err, service.ErrMissingRequiredFields)
}

func TestDeletePickup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.parentPickup(t, "s1")
	f.events.Reset()

	require.NoError(t, f.pickups.Delete(ctx, p.ID.Hex()))
	assert.ErrorIs(t, f.pickups.Delete(ctx, p.ID.Hex()), service.ErrNotFound)

	deleted := f.events.OfType(models.EventPickupDeleted)
	require.Len(t, deleted, 2)
	assert.Equal(t, models.PickupDeletedPayload{PickupID: p.ID.Hex()}, deleted[0].Payload)
}

type fakeArchiver struct {
	err      error
	archived []models.Pickup
	// during chạy trong lúc "upload", trước khi snapshot được ghi xong.
	during func()
}

func (a *fakeArchiver) ArchivePickups(ctx context.Context, pickups []models.Pickup) (string, error) {
	if a.during != nil {
		a.during()
	}
	if a.err != nil {
		return "", a.err
	}
	a.archived = pickups
	return "s3://archive/pickups.json", nil
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()

	t.Run("archives then purges", func(t *testing.T) {
		f := newFixture(t)
		f.parentPickup(t, "s1")
		f.parentPickup(t, "s2")
		archiver := &fakeArchiver{}
		f.pickups.SetArchiver(archiver)
		f.events.Reset()

		result, err := f.pickups.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Count)
		assert.Equal(t, "s3://archive/pickups.json", result.Archive)
		assert.Len(t, archiver.archived, 2)

		cleared := f.events.OfType(models.EventPickupsCleared)
		require.Len(t, cleared, 1)
		payload, ok := cleared[0].Payload.(models.PickupsClearedPayload)
		require.True(t, ok)
		assert.Equal(t, int64(2), payload.Count)
		assert.ElementsMatch(t, []string{archiver.archived[0].ID.Hex(), archiver.archived[1].ID.Hex()}, payload.PickupIDs)
	})

	t.Run("pickup created during upload survives", func(t *testing.T) {
		f := newFixture(t)
		f.parentPickup(t, "s1")
		var late models.Pickup
		archiver := &fakeArchiver{during: func() { late = f.parentPickup(t, "s2") }}
		f.pickups.SetArchiver(archiver)

		result, err := f.pickups.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Count)
		require.Len(t, archiver.archived, 1)

		left, err := f.pickups.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, late.ID, left[0].ID)
	})

	t.Run("archive failure aborts purge", func(t *testing.T) {
		f := newFixture(t)
		f.parentPickup(t, "s1")
		f.pickups.SetArchiver(&fakeArchiver{err: errors.New("bucket unreachable")})
		f.events.Reset()

		_, err := f.pickups.DeleteAll(ctx)
		require.Error(t, err)
		assert.Equal(t, service.KindUnexpected, service.ErrorKind(err))

		left, err := f.pickups.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, left, 1)
		assert.Empty(t, f.events.Events())
	})

	t.Run("without archiver", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.pickups.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Count)
		assert.Len(t, f.events.OfType(models.EventPickupsCleared), 1)
	})
}
