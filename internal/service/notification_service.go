package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/store"
)

type CreateNotificationParams struct {
	Title       string
	Description string
	Icon        string
}

// NotificationService bọc Notification Store và phát sự kiện khi danh sách thay đổi.
// Trạng thái đã đọc được giữ ở từng thiết bị; server chỉ ghi nhận cho biết.
type NotificationService struct {
	notifications store.NotificationStore
	events        Publisher
	logger        *slog.Logger
	now           Clock
}

func NewNotificationService(notifications store.NotificationStore, events Publisher, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		events:        events,
		logger:        defaultLogger(logger),
		now:           systemClock,
	}
}

func (s *NotificationService) SetClock(now Clock) { s.now = now }

func (s *NotificationService) List(ctx context.Context) ([]models.Notification, error) {
	return s.notifications.ListNotifications(ctx)
}

func (s *NotificationService) Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error) {
	logger := opLogger(ctx, s.logger, "notifications", "create", "title", params.Title)
	if strings.TrimSpace(params.Title) == "" {
		logOutcome(logger, ErrMissingRequiredFields, "notification created")
		return models.Notification{}, ErrMissingRequiredFields
	}
	n := models.Notification{
		Title:       params.Title,
		Description: params.Description,
		Icon:        params.Icon,
		CreatedAt:   s.now(),
	}
	if err := s.notifications.InsertNotification(ctx, &n); err != nil {
		err = fmt.Errorf("save notification: %w", err)
		logOutcome(logger, err, "notification created")
		return models.Notification{}, err
	}
	logOutcome(logger, nil, "notification created", "notification_id", n.ID.Hex())

	s.events.Publish(models.Event{Topic: models.TopicNotificationsGlobal, Type: models.EventNewNotification, Payload: n})
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, ids []string) (int64, error) {
	ids = uniqueIDs(ids)
	logger := opLogger(ctx, s.logger, "notifications", "delete", "ids", ids)
	if len(ids) == 0 {
		logOutcome(logger, ErrMissingRequiredFields, "notifications deleted")
		return 0, ErrMissingRequiredFields
	}
	n, err := s.notifications.DeleteNotifications(ctx, ids)
	if err != nil {
		err = fmt.Errorf("delete notifications: %w", err)
		logOutcome(logger, err, "notifications deleted")
		return 0, err
	}
	logOutcome(logger, nil, "notifications deleted", "count", n)

	s.events.Publish(models.Event{
		Topic:   models.TopicNotificationsGlobal,
		Type:    models.EventNotificationsDeleted,
		Payload: models.NotificationsDeletedPayload{IDs: ids},
	})
	return n, nil
}

// MarkRead records that deviceID has read the notification.
func (s *NotificationService) MarkRead(ctx context.Context, id, deviceID string) error {
	if id == "" || deviceID == "" {
		return ErrMissingRequiredFields
	}
	err := s.notifications.MarkRead(ctx, id, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
