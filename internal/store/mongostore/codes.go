package mongostore

import (
	"context"
	"fmt"
	"time"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CodeStore struct {
	coll *mongo.Collection
}

func NewCodeStore(db *mongo.Database) *CodeStore {
	return &CodeStore{coll: db.Collection(CodesCollection)}
}

func (s *CodeStore) InsertCode(ctx context.Context, code *models.QRCode) error {
	// $push cần một mảng có sẵn, không được là null.
	if code.Scans == nil {
		code.Scans = []models.Scan{}
	}
	result, err := s.coll.InsertOne(ctx, code)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("insert qr code: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		code.ID = oid
	}
	return nil
}

func (s *CodeStore) GetCode(ctx context.Context, code string) (models.QRCode, error) {
	var q models.QRCode
	err := s.coll.FindOne(ctx, bson.M{"code": code}).Decode(&q)
	return q, translate(err)
}

func (s *CodeStore) FindVerifiable(ctx context.Context, code string, now time.Time) (models.QRCode, error) {
	filter := bson.M{
		"code":      code,
		"isActive":  true,
		"expiresAt": bson.M{"$gt": now},
	}
	var q models.QRCode
	err := s.coll.FindOne(ctx, filter).Decode(&q)
	return q, translate(err)
}

func (s *CodeStore) AppendScan(ctx context.Context, code string, scan models.Scan) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"code": code}, bson.M{"$push": bson.M{"scans": scan}})
	if err != nil {
		return fmt.Errorf("append scan: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *CodeStore) Deactivate(ctx context.Context, code string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"code": code, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false}},
	)
	if err != nil {
		return fmt.Errorf("deactivate qr code: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *CodeStore) DeleteCode(ctx context.Context, code string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"code": code})
	if err != nil {
		return fmt.Errorf("delete qr code: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *CodeStore) ListActive(ctx context.Context, schoolID string, now time.Time) ([]models.QRCode, error) {
	filter := bson.M{"isActive": true, "expiresAt": bson.M{"$gt": now}}
	if schoolID != "" {
		filter["schoolId"] = schoolID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query active codes: %w", err)
	}
	defer cursor.Close(ctx)

	var codes []models.QRCode
	if err := cursor.All(ctx, &codes); err != nil {
		return nil, fmt.Errorf("decode active codes: %w", err)
	}
	if codes == nil {
		codes = []models.QRCode{}
	}
	return codes, nil
}
