package mongostore

import (
	"context"

	"safe-pickup-api-server/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// Directory đọc tài xế và người dùng từ các collection do hệ thống khác quản lý.
type Directory struct {
	drivers *mongo.Collection
	users   *mongo.Collection
}

func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{
		drivers: db.Collection(DriversCollection),
		users:   db.Collection(UsersCollection),
	}
}

func (d *Directory) GetDriver(ctx context.Context, id string) (models.Driver, error) {
	var driver models.Driver
	err := d.drivers.FindOne(ctx, externalIDFilter(id)).Decode(&driver)
	return driver, translate(err)
}

func (d *Directory) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := d.users.FindOne(ctx, externalIDFilter(id)).Decode(&user)
	return user, translate(err)
}
