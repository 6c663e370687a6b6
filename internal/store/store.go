// Package store định nghĩa các interface lưu trữ mà service sử dụng.
// Có hai bản cài đặt: mongostore (MongoDB) và memstore (bộ nhớ, dùng cho dev và test).
package store

import (
	"context"
	"errors"
	"time"

	"safe-pickup-api-server/internal/models"
)

var (
	// ErrNotFound is returned when no document matches the given key.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a conditional write found the document in another state.
	ErrConflict = errors.New("store: conflict")
)

type CodeStore interface {
	InsertCode(ctx context.Context, code *models.QRCode) error
	GetCode(ctx context.Context, code string) (models.QRCode, error)
	// FindVerifiable returns the code only if it is active and unexpired at now.
	FindVerifiable(ctx context.Context, code string, now time.Time) (models.QRCode, error)
	// AppendScan atomically appends one scan to the code's scan list.
	AppendScan(ctx context.Context, code string, scan models.Scan) error
	// Deactivate flips isActive on an active code. ErrNotFound if none was active.
	Deactivate(ctx context.Context, code string) error
	DeleteCode(ctx context.Context, code string) error
	// ListActive returns active, unexpired codes, newest first. Empty schoolID matches all.
	ListActive(ctx context.Context, schoolID string, now time.Time) ([]models.QRCode, error)
}

// StatusChange là phần thay đổi được ghi cùng lúc với trạng thái mới.
type StatusChange struct {
	Status      models.PickupStatus
	Entry       models.HistoryEntry
	CompletedBy *models.ActorSnapshot
	CompletedAt *time.Time
}

// CountFilter selects pickups for the dashboard counters. OlderThan, when set,
// keeps only pickups created before it.
type CountFilter struct {
	Status    models.PickupStatus
	OlderThan time.Time
}

type PickupStore interface {
	InsertPickup(ctx context.Context, p *models.Pickup) error
	GetPickup(ctx context.Context, id string) (models.Pickup, error)
	// CompareAndSetStatus applies change only while the pickup is in status from.
	// It returns ErrNotFound for an unknown id and ErrConflict when the status differs.
	CompareAndSetStatus(ctx context.Context, id string, from models.PickupStatus, change StatusChange) (models.Pickup, error)
	DeletePickup(ctx context.Context, id string) error
	DeleteAllPickups(ctx context.Context) (int64, error)
	// DeletePickups removes exactly the given pickups and returns how many existed.
	DeletePickups(ctx context.Context, ids []string) (int64, error)
	ListByParent(ctx context.Context, parentID string) ([]models.Pickup, error)
	// ListPickups returns summaries ordered by pickupTime descending. Empty status matches all.
	ListPickups(ctx context.Context, status models.PickupStatus) ([]models.PickupSummary, error)
	ListAllPickups(ctx context.Context) ([]models.Pickup, error)
	CountPickups(ctx context.Context, filter CountFilter) (int64, error)
}

// Directory is the read-only view of drivers and users owned by other systems.
type Directory interface {
	GetDriver(ctx context.Context, id string) (models.Driver, error)
	GetUser(ctx context.Context, id string) (models.User, error)
}

type NotificationStore interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	InsertNotification(ctx context.Context, n *models.Notification) error
	DeleteNotifications(ctx context.Context, ids []string) (int64, error)
	MarkRead(ctx context.Context, id, deviceID string) error
}
