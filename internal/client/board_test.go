package client

import (
	"encoding/json"
	"testing"
	"time"

	"safe-pickup-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func frame(t *testing.T, typ models.EventType, payload interface{}) Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return Frame{Topic: models.TopicPickupsGlobal, Type: typ, Payload: data}
}

func pendingPickup(at time.Time) models.Pickup {
	return models.Pickup{ID: primitive.NewObjectID(), PickupCode: "QR-1", Status: models.StatusPending, PickupTime: at}
}

func TestBoardAppliesEvents(t *testing.T) {
	b := NewBoard()
	base := time.Date(2024, 9, 2, 15, 0, 0, 0, time.UTC)
	first, second := pendingPickup(base), pendingPickup(base.Add(time.Minute))

	for _, p := range []models.Pickup{first, second} {
		handled, err := b.Apply(frame(t, models.EventNewPickup, p))
		require.NoError(t, err)
		assert.True(t, handled)
	}
	pending := b.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, second.ID, pending[0].ID)

	// Áp dụng lại cùng sự kiện không tạo bản trùng.
	_, err := b.Apply(frame(t, models.EventNewPickup, first))
	require.NoError(t, err)
	assert.Len(t, b.Pending(), 2)

	done := first
	done.Status = models.StatusCompleted
	_, err = b.Apply(frame(t, models.EventPickupStatusUpdated, models.StatusUpdatedPayload{PickupID: first.ID.Hex(), Status: done.Status, Pickup: done}))
	require.NoError(t, err)
	require.Len(t, b.Pending(), 1)
	assert.Equal(t, second.ID, b.Pending()[0].ID)

	_, err = b.Apply(frame(t, models.EventPickupDeleted, models.PickupDeletedPayload{PickupID: second.ID.Hex()}))
	require.NoError(t, err)
	assert.Empty(t, b.Pending())

	b.Replace([]models.PickupSummary{first.Summary(), done.Summary(), second.Summary()})
	assert.Len(t, b.Pending(), 2, "terminal pickups never enter the board")

	_, err = b.Apply(frame(t, models.EventPickupsCleared, models.PickupsClearedPayload{Count: 2}))
	require.NoError(t, err)
	assert.Empty(t, b.Pending())
}

func TestBoardPartialClearKeepsNewerPickups(t *testing.T) {
	b := NewBoard()
	base := time.Date(2024, 9, 2, 15, 0, 0, 0, time.UTC)
	archived, late := pendingPickup(base), pendingPickup(base.Add(time.Minute))
	b.Replace([]models.PickupSummary{archived.Summary(), late.Summary()})

	_, err := b.Apply(frame(t, models.EventPickupsCleared, models.PickupsClearedPayload{
		Count:     1,
		PickupIDs: []string{archived.ID.Hex()},
	}))
	require.NoError(t, err)

	pending := b.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, late.ID, pending[0].ID)
}

func TestBoardIgnoresOtherFrames(t *testing.T) {
	b := NewBoard()
	handled, err := b.Apply(Frame{Type: models.EventNewNotification, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = b.Apply(Frame{Type: models.EventNewPickup, Payload: json.RawMessage(`"oops"`)})
	assert.True(t, handled)
	assert.Error(t, err)
}
