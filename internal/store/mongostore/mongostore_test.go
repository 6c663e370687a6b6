package mongostore

import (
	"context"
	"testing"
	"time"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

var pickupTime = time.Date(2024, 9, 2, 15, 30, 0, 0, time.UTC)

func toDoc(t *testing.T, v interface{}) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func samplePickup(status models.PickupStatus) models.Pickup {
	return models.Pickup{
		ID:           primitive.NewObjectID(),
		PickupCode:   "PK-1001",
		StudentIDs:   []string{"s1"},
		StudentNames: []string{"An"},
		StudentCodes: []string{"A01"},
		Parent:       models.ParentSnapshot{ID: "p1", Name: "Lan", Email: "lan@example.com"},
		InitiatedBy:  models.ActorSnapshot{ID: "p1", Name: "Lan", Type: models.ActorParent},
		Status:       status,
		StatusHistory: []models.HistoryEntry{{
			Status:    models.StatusPending,
			UpdatedBy: models.ActorSnapshot{ID: "p1", Name: "Lan", Type: models.ActorParent},
			UpdatedAt: pickupTime,
		}},
		PickupTime: pickupTime,
	}
}

func TestPickupStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get decodes document", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		p := samplePickup(models.StatusPending)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, toDoc(mt.T, p)))

		got, err := s.GetPickup(ctx, p.ID.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, p.ID, got.ID)
		assert.Equal(mt, "PK-1001", got.PickupCode)
		assert.Equal(mt, p.Parent, got.Parent)
		assert.True(mt, pickupTime.Equal(got.PickupTime))
	})

	mt.Run("get missing is not found", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := s.GetPickup(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("malformed id is not found", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}

		_, err := s.GetPickup(ctx, "not-an-object-id")
		assert.ErrorIs(mt, err, store.ErrNotFound)
		_, err = s.CompareAndSetStatus(ctx, "zz", models.StatusPending, store.StatusChange{Status: models.StatusCompleted})
		assert.ErrorIs(mt, err, store.ErrNotFound)
		assert.ErrorIs(mt, s.DeletePickup(ctx, "zz"), store.ErrNotFound)
	})

	mt.Run("compare and set returns updated pickup", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		p := samplePickup(models.StatusCompleted)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toDoc(mt.T, p)}))

		got, err := s.CompareAndSetStatus(ctx, p.ID.Hex(), models.StatusPending, store.StatusChange{Status: models.StatusCompleted})
		require.NoError(mt, err)
		assert.Equal(mt, models.StatusCompleted, got.Status)
	})

	mt.Run("compare and set on handled pickup conflicts", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		_, err := s.CompareAndSetStatus(ctx, primitive.NewObjectID().Hex(), models.StatusPending, store.StatusChange{Status: models.StatusCancelled})
		assert.ErrorIs(mt, err, store.ErrConflict)
	})

	mt.Run("compare and set on missing pickup is not found", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch),
		)

		_, err := s.CompareAndSetStatus(ctx, primitive.NewObjectID().Hex(), models.StatusPending, store.StatusChange{Status: models.StatusCancelled})
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("delete reports missing pickup", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))

		assert.ErrorIs(mt, s.DeletePickup(ctx, primitive.NewObjectID().Hex()), store.ErrNotFound)
	})

	mt.Run("delete all returns count", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(3)}))

		n, err := s.DeleteAllPickups(ctx)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})

	mt.Run("delete by ids", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(2)}))

		n, err := s.DeletePickups(ctx, []string{primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex(), "bad"})
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})

	mt.Run("delete by ids without valid ids skips the server", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}

		n, err := s.DeletePickups(ctx, []string{"bad"})
		require.NoError(mt, err)
		assert.Zero(mt, n)
	})

	mt.Run("list on empty collection is not nil", func(mt *mtest.T) {
		s := &PickupStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		list, err := s.ListPickups(ctx, models.StatusPending)
		require.NoError(mt, err)
		assert.NotNil(mt, list)
		assert.Empty(mt, list)
	})
}

func TestCodeStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("insert initialises scans", func(mt *mtest.T) {
		s := &CodeStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		code := &models.QRCode{Code: "QR-1", SchoolID: "sch-1", IsActive: true, ExpiresAt: pickupTime.Add(time.Hour)}
		require.NoError(mt, s.InsertCode(ctx, code))
		assert.NotNil(mt, code.Scans)
		assert.False(mt, code.ID.IsZero())
	})

	mt.Run("duplicate code conflicts", func(mt *mtest.T) {
		s := &CodeStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := s.InsertCode(ctx, &models.QRCode{Code: "QR-1"})
		assert.ErrorIs(mt, err, store.ErrConflict)
	})

	mt.Run("verifiable lookup miss is not found", func(mt *mtest.T) {
		s := &CodeStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := s.FindVerifiable(ctx, "QR-404", pickupTime)
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("append scan on unknown code", func(mt *mtest.T) {
		s := &CodeStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(0)},
			bson.E{Key: "nModified", Value: int32(0)},
		))

		err := s.AppendScan(ctx, "QR-404", models.Scan{ActorKind: models.ScanByParent, ActorID: "p1", Timestamp: pickupTime})
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("deactivate matched code", func(mt *mtest.T) {
		s := &CodeStore{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(1)},
			bson.E{Key: "nModified", Value: int32(1)},
		))

		assert.NoError(mt, s.Deactivate(ctx, "QR-1"))
	})
}

func TestExternalIDFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	assert.Equal(t, bson.M{"_id": "d1"}, externalIDFilter("d1"))
	assert.Equal(t, bson.M{"_id": bson.M{"$in": bson.A{oid.Hex(), oid}}}, externalIDFilter(oid.Hex()))
}
