// Package mongostore cài đặt các store trên MongoDB.
package mongostore

import (
	"errors"

	"safe-pickup-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Tên các collection.
const (
	CodesCollection         = "qr_codes"
	PickupsCollection       = "pickups"
	DriversCollection       = "drivers"
	UsersCollection         = "users"
	NotificationsCollection = "notifications"
)

var (
	_ store.CodeStore         = (*CodeStore)(nil)
	_ store.PickupStore       = (*PickupStore)(nil)
	_ store.Directory         = (*Directory)(nil)
	_ store.NotificationStore = (*NotificationStore)(nil)
)

// objectID chuyển id dạng hex; id sai định dạng được coi như không tồn tại.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, store.ErrNotFound
	}
	return oid, nil
}

// externalIDFilter matches documents owned by other systems, which may key
// their _id either as a string or as an ObjectID.
func externalIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func translate(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}
