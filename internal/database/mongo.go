// internal/database/mongo.go
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"safe-pickup-api-server/config"
	"safe-pickup-api-server/internal/store/mongostore"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect mở kết nối MongoDB và kiểm tra bằng ping trước khi trả về.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Indexes lists the indexes the stores rely on, per collection.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		mongostore.CodesCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "schoolId", Value: 1}, {Key: "isActive", Value: 1}, {Key: "expiresAt", Value: 1}}},
		},
		mongostore.PickupsCollection: {
			{Keys: bson.D{{Key: "parent.id", Value: 1}, {Key: "pickupTime", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "pickupTime", Value: -1}}},
		},
		mongostore.NotificationsCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}
}

// EnsureIndexes tạo các index còn thiếu. Gọi lại nhiều lần vẫn an toàn.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for coll, models := range Indexes() {
		names, err := db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
		logger.Info("indexes ensured", "collection", coll, "indexes", names)
	}
	return nil
}
