// internal/models/directory.go
package models

// Driver là tài xế được phụ huynh ủy quyền. Dữ liệu thuộc về hệ thống quản lý tài xế,
// ở đây chỉ đọc.
type Driver struct {
	ID               string `bson:"_id" json:"id"`
	ParentID         string `bson:"parentId" json:"parentId"`
	Name             string `bson:"name" json:"name"`
	Email            string `bson:"email" json:"email"`
	Phone            string `bson:"phone" json:"phone"`
	VerificationCode string `bson:"verificationCode" json:"-"`
	IsRegistered     bool   `bson:"isRegistered" json:"isRegistered"`
}

// Active: chỉ tài xế đã đăng ký mới được hành động thay phụ huynh.
func (d Driver) Active() bool {
	return d.IsRegistered
}

// Snapshot returns the driver as a pickup actor.
func (d Driver) Snapshot() ActorSnapshot {
	return ActorSnapshot{ID: d.ID, Name: d.Name, Email: d.Email, Type: ActorDriver}
}

// User matches the document in the users collection.
type User struct {
	ID    string `bson:"_id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Role  string `bson:"role" json:"role"`
}

func (u User) ParentSnapshot() ParentSnapshot {
	return ParentSnapshot{ID: u.ID, Name: u.Name, Email: u.Email}
}
