// internal/api/handlers/notification_handler.go
package handlers

import (
	"net/http"

	"safe-pickup-api-server/internal/api/middleware"
	"safe-pickup-api-server/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	Notifications *service.NotificationService
}

type CreateNotificationRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type DeleteNotificationsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

type MarkReadRequest struct {
	DeviceID string `json:"deviceId"`
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	list, err := h.Notifications.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	n, err := h.Notifications.Create(c.Request.Context(), service.CreateNotificationParams{
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *NotificationHandler) DeleteNotifications(c *gin.Context) {
	var req DeleteNotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	n, err := h.Notifications.Delete(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "deletedCount": n})
}

// MarkRead ghi nhận thiết bị đã đọc thông báo. Chỉ mang tính thông tin; số chưa đọc
// được tính ở thiết bị.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)

	var req MarkReadRequest
	// Body là tùy chọn.
	_ = c.ShouldBindJSON(&req)
	if req.DeviceID == "" {
		req.DeviceID = id.UserID
	}
	if err := h.Notifications.MarkRead(c.Request.Context(), c.Param("id"), req.DeviceID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
