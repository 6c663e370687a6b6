// internal/models/pickup.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PickupStatus string

const (
	StatusPending   PickupStatus = "pending"
	StatusCompleted PickupStatus = "completed"
	StatusCancelled PickupStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s PickupStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal: completed và cancelled là trạng thái cuối, không chuyển tiếp được nữa.
func (s PickupStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type ActorType string

const (
	ActorParent ActorType = "parent"
	ActorDriver ActorType = "driver"
	ActorStaff  ActorType = "staff"
	ActorAdmin  ActorType = "admin"
)

// ParentSnapshot được chụp lại lúc tạo pickup và không bao giờ được tính lại.
type ParentSnapshot struct {
	ID    string `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
}

// Complete reports whether every field of the snapshot is populated.
func (p ParentSnapshot) Complete() bool {
	return p.ID != "" && p.Name != "" && p.Email != ""
}

// ActorSnapshot identifies who initiated, updated or closed a pickup.
type ActorSnapshot struct {
	ID    string    `bson:"id" json:"id"`
	Name  string    `bson:"name" json:"name"`
	Email string    `bson:"email,omitempty" json:"email,omitempty"`
	Type  ActorType `bson:"type" json:"type"`
}

type HistoryEntry struct {
	Status    PickupStatus  `bson:"status" json:"status"`
	UpdatedBy ActorSnapshot `bson:"updatedBy" json:"updatedBy"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"updatedAt"`
	Notes     string        `bson:"notes,omitempty" json:"notes,omitempty"`
}

// StudentInfo là dữ liệu hiển thị của học sinh được gửi kèm khi tạo pickup.
type StudentInfo struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Pickup struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PickupCode    string             `bson:"pickupCode" json:"pickupCode"`
	StudentIDs    []string           `bson:"studentIds" json:"studentIds"`
	StudentNames  []string           `bson:"studentNames" json:"studentNames"`
	StudentCodes  []string           `bson:"studentCodes" json:"studentCodes"`
	Parent        ParentSnapshot     `bson:"parent" json:"parent"`
	InitiatedBy   ActorSnapshot      `bson:"initiatedBy" json:"initiatedBy"`
	CompletedBy   *ActorSnapshot     `bson:"completedBy,omitempty" json:"completedBy,omitempty"`
	Status        PickupStatus       `bson:"status" json:"status"`
	StatusHistory []HistoryEntry     `bson:"statusHistory" json:"statusHistory"`
	PickupTime    time.Time          `bson:"pickupTime" json:"pickupTime"`
	CompletedAt   *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// PickupSummary là phần dữ liệu rút gọn cho màn hình của nhân viên.
type PickupSummary struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	PickupCode   string             `bson:"pickupCode" json:"pickupCode"`
	StudentNames []string           `bson:"studentNames" json:"studentNames"`
	StudentCodes []string           `bson:"studentCodes" json:"studentCodes"`
	Parent       ParentSnapshot     `bson:"parent" json:"parent"`
	InitiatedBy  ActorSnapshot      `bson:"initiatedBy" json:"initiatedBy"`
	Status       PickupStatus       `bson:"status" json:"status"`
	PickupTime   time.Time          `bson:"pickupTime" json:"pickupTime"`
	CompletedAt  *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Summary projects the pickup onto the staff list fields.
func (p Pickup) Summary() PickupSummary {
	return PickupSummary{
		ID:           p.ID,
		PickupCode:   p.PickupCode,
		StudentNames: p.StudentNames,
		StudentCodes: p.StudentCodes,
		Parent:       p.Parent,
		InitiatedBy:  p.InitiatedBy,
		Status:       p.Status,
		PickupTime:   p.PickupTime,
		CompletedAt:  p.CompletedAt,
	}
}

// PickupStats holds the dashboard counters.
type PickupStats struct {
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
}
