package mongostore

import (
	"context"
	"errors"
	"fmt"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PickupStore struct {
	coll *mongo.Collection
}

func NewPickupStore(db *mongo.Database) *PickupStore {
	return &PickupStore{coll: db.Collection(PickupsCollection)}
}

var newestFirst = bson.D{{Key: "pickupTime", Value: -1}}

// summaryProjection giữ đúng các field của models.PickupSummary.
var summaryProjection = bson.M{
	"pickupCode":   1,
	"studentNames": 1,
	"studentCodes": 1,
	"parent":       1,
	"initiatedBy":  1,
	"status":       1,
	"pickupTime":   1,
	"completedAt":  1,
}

func (s *PickupStore) InsertPickup(ctx context.Context, p *models.Pickup) error {
	result, err := s.coll.InsertOne(ctx, p)
	if err != nil {
		return fmt.Errorf("insert pickup: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid
	}
	return nil
}

func (s *PickupStore) GetPickup(ctx context.Context, id string) (models.Pickup, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Pickup{}, err
	}
	var p models.Pickup
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&p)
	return p, translate(err)
}

// CompareAndSetStatus chỉ cập nhật khi status hiện tại vẫn là from. Filter và update nằm
// trong cùng một lệnh nên chỉ một trong các yêu cầu đồng thời thắng.
func (s *PickupStore) CompareAndSetStatus(ctx context.Context, id string, from models.PickupStatus, change store.StatusChange) (models.Pickup, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Pickup{}, err
	}

	set := bson.M{"status": change.Status}
	if change.CompletedBy != nil {
		set["completedBy"] = change.CompletedBy
	}
	if change.CompletedAt != nil {
		set["completedAt"] = change.CompletedAt
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"statusHistory": change.Entry},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Pickup
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid, "status": from}, update, opts).Decode(&updated)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Pickup{}, fmt.Errorf("update pickup status: %w", err)
	}

	// Không khớp: hoặc không tồn tại, hoặc đã bị người khác chuyển trạng thái.
	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return models.Pickup{}, fmt.Errorf("check pickup existence: %w", err)
	}
	if count == 0 {
		return models.Pickup{}, store.ErrNotFound
	}
	return models.Pickup{}, store.ErrConflict
}

func (s *PickupStore) DeletePickup(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete pickup: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PickupStore) DeleteAllPickups(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("delete all pickups: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *PickupStore) DeletePickups(ctx context.Context, ids []string) (int64, error) {
	oids := make(bson.A, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return 0, nil
	}
	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, fmt.Errorf("delete pickups: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *PickupStore) find(ctx context.Context, filter bson.M) ([]models.Pickup, error) {
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("query pickups: %w", err)
	}
	defer cursor.Close(ctx)

	var pickups []models.Pickup
	if err := cursor.All(ctx, &pickups); err != nil {
		return nil, fmt.Errorf("decode pickups: %w", err)
	}
	if pickups == nil {
		pickups = []models.Pickup{}
	}
	return pickups, nil
}

func (s *PickupStore) ListByParent(ctx context.Context, parentID string) ([]models.Pickup, error) {
	return s.find(ctx, bson.M{"parent.id": parentID})
}

func (s *PickupStore) ListAllPickups(ctx context.Context) ([]models.Pickup, error) {
	return s.find(ctx, bson.M{})
}

func (s *PickupStore) ListPickups(ctx context.Context, status models.PickupStatus) ([]models.PickupSummary, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(newestFirst).SetProjection(summaryProjection)
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query pickups: %w", err)
	}
	defer cursor.Close(ctx)

	var summaries []models.PickupSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("decode pickups: %w", err)
	}
	if summaries == nil {
		summaries = []models.PickupSummary{}
	}
	return summaries, nil
}

func (s *PickupStore) CountPickups(ctx context.Context, filter store.CountFilter) (int64, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if !filter.OlderThan.IsZero() {
		q["pickupTime"] = bson.M{"$lt": filter.OlderThan}
	}
	n, err := s.coll.CountDocuments(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count pickups: %w", err)
	}
	return n, nil
}
