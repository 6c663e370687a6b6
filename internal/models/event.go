// internal/models/event.go
package models

import "strings"

// Topic names của Event Hub.
const (
	TopicPickupsGlobal       = "pickups:global"
	TopicCodesGlobal         = "codes:global"
	TopicNotificationsGlobal = "notifications:global"

	pickupTopicPrefix = "pickups:"
)

// PickupTopic returns the per-pickup topic for id.
func PickupTopic(id string) string {
	return pickupTopicPrefix + id
}

// PickupIDFromTopic trả về id nếu topic là topic riêng của một pickup.
func PickupIDFromTopic(topic string) (string, bool) {
	if topic == TopicPickupsGlobal || !strings.HasPrefix(topic, pickupTopicPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, pickupTopicPrefix)
	return id, id != ""
}

type EventType string

const (
	EventNewPickup            EventType = "new-pickup"
	EventPickupStatusUpdated  EventType = "pickup-status-updated"
	EventPickupDeleted        EventType = "pickup-deleted"
	EventPickupsCleared       EventType = "pickups-cleared"
	EventQRCodeUpdated        EventType = "qrCodeUpdated"
	EventNewNotification      EventType = "newNotification"
	EventNotificationsDeleted EventType = "notificationsDeleted"
	// EventSessionReady được gửi ngay khi kết nối; client phải tải lại toàn bộ trạng thái.
	EventSessionReady EventType = "session-ready"
)

// Event is a transient message fanned out by the hub. It is never persisted.
type Event struct {
	Topic   string      `json:"topic"`
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type StatusUpdatedPayload struct {
	PickupID string       `json:"pickupId"`
	Status   PickupStatus `json:"status"`
	Pickup   Pickup       `json:"pickup"`
}

type PickupDeletedPayload struct {
	PickupID string `json:"pickupId"`
}

// PickupsClearedPayload: PickupIDs rỗng nghĩa là toàn bộ pickup đã bị xóa.
type PickupsClearedPayload struct {
	Count     int64    `json:"count"`
	PickupIDs []string `json:"pickupIds,omitempty"`
}

type NotificationsDeletedPayload struct {
	IDs []string `json:"ids"`
}

type SessionReadyPayload struct {
	SessionID string   `json:"sessionId"`
	Topics    []string `json:"topics"`
}
