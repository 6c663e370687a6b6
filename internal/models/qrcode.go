// internal/models/qrcode.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScanActorKind phân biệt ai đã quét mã: phụ huynh hoặc tài xế.
type ScanActorKind string

const (
	ScanByParent ScanActorKind = "parent"
	ScanByDriver ScanActorKind = "driver"
)

// Scan là một lần xác minh mã thành công. Danh sách scan chỉ được nối thêm.
type Scan struct {
	ActorKind ScanActorKind `bson:"actorKind" json:"actorKind"`
	ActorID   string        `bson:"actorId" json:"actorId"`
	ParentID  string        `bson:"parentId,omitempty" json:"parentId,omitempty"`
	StudentID string        `bson:"studentId,omitempty" json:"studentId,omitempty"`
	Timestamp time.Time     `bson:"timestamp" json:"timestamp"`
}

// QRCode is a time-boxed, reusable token issued by school staff.
type QRCode struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code      string             `bson:"code" json:"code"`
	SchoolID  string             `bson:"schoolId" json:"schoolId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	Scans     []Scan             `bson:"scans" json:"scans"`
}

// QRCodeDisplay là phần của mã được hiển thị trên màn hình sảnh, không kèm lịch sử quét.
type QRCodeDisplay struct {
	Code      string    `json:"code"`
	SchoolID  string    `json:"schoolId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (q QRCode) Display() QRCodeDisplay {
	return QRCodeDisplay{Code: q.Code, SchoolID: q.SchoolID, ExpiresAt: q.ExpiresAt}
}

// Verifiable reports whether the code can still be presented at time now.
func (q QRCode) Verifiable(now time.Time) bool {
	return q.IsActive && now.Before(q.ExpiresAt)
}
