// internal/api/handlers/websocket_handler.go
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"safe-pickup-api-server/internal/auth"
	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/service"
	"safe-pickup-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Các frame phản hồi control message.
const (
	FrameSubscribed   models.EventType = "subscribed"
	FrameUnsubscribed models.EventType = "unsubscribed"
	FrameError        models.EventType = "error"
)

var (
	errTopicForbidden = errors.New("not allowed to subscribe to this topic")
	errUnknownTopic   = errors.New("unknown topic")
	errUnknownAction  = errors.New("unknown action")
)

type WebSocketHandler struct {
	Hub     *socket.Hub
	Pickups *service.PickupService
	Secret  []byte
	Pump    socket.PumpConfig
	Logger  *slog.Logger
}

// DefaultTopics trả về các topic một vai trò được đăng ký sẵn khi kết nối.
func DefaultTopics(role string) []string {
	if isStaff(role) {
		return []string{models.TopicPickupsGlobal, models.TopicCodesGlobal, models.TopicNotificationsGlobal}
	}
	return []string{models.TopicNotificationsGlobal}
}

// ServeWs xử lý các yêu cầu kết nối WebSocket. Ngay sau khi kết nối, server gửi frame
// session-ready; client phải tải lại toàn bộ trạng thái khi nhận được nó.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}
	id, err := auth.ParseJWT(h.Secret, tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	session := h.Hub.Register(id.Role, id.UserID)
	defer h.Hub.Unregister(session)

	for _, topic := range DefaultTopics(id.Role) {
		h.Hub.Subscribe(session, topic)
	}
	h.Hub.SendTo(session, models.Event{
		Type:    models.EventSessionReady,
		Payload: models.SessionReadyPayload{SessionID: session.ID(), Topics: h.Hub.Topics(session)},
	})

	go socket.WritePump(conn, session, h.Pump)

	ctx := c.Request.Context()
	err = socket.ReadPump(conn, h.Pump, func(frame socket.ControlFrame) {
		h.handleControl(ctx, id, session, frame)
	})
	if err != nil {
		h.Logger.Warn("websocket read failed", "session_id", session.ID(), "error", err)
	}
}

func (h *WebSocketHandler) handleControl(ctx context.Context, id auth.Identity, s *socket.Session, frame socket.ControlFrame) {
	switch frame.Action {
	case socket.ActionSubscribe:
		if err := h.authorizeTopic(ctx, id, frame.Topic); err != nil {
			h.Hub.SendTo(s, models.Event{Topic: frame.Topic, Type: FrameError, Payload: gin.H{"error": err.Error()}})
			return
		}
		h.Hub.Subscribe(s, frame.Topic)
		h.Hub.SendTo(s, models.Event{Topic: frame.Topic, Type: FrameSubscribed})
	case socket.ActionUnsubscribe:
		h.Hub.Unsubscribe(s, frame.Topic)
		h.Hub.SendTo(s, models.Event{Topic: frame.Topic, Type: FrameUnsubscribed})
	default:
		h.Hub.SendTo(s, models.Event{Topic: frame.Topic, Type: FrameError, Payload: gin.H{"error": errUnknownAction.Error()}})
	}
}

// authorizeTopic: nhân viên nghe mọi topic; phụ huynh và tài xế chỉ nghe pickup của mình.
func (h *WebSocketHandler) authorizeTopic(ctx context.Context, id auth.Identity, topic string) error {
	switch topic {
	case models.TopicNotificationsGlobal:
		return nil
	case models.TopicPickupsGlobal, models.TopicCodesGlobal:
		if isStaff(id.Role) {
			return nil
		}
		return errTopicForbidden
	}

	pickupID, ok := models.PickupIDFromTopic(topic)
	if !ok {
		return errUnknownTopic
	}
	if isStaff(id.Role) {
		return nil
	}
	pickup, err := h.Pickups.Get(ctx, pickupID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return errUnknownTopic
		}
		return err
	}
	if pickup.Parent.ID == id.UserID || pickup.InitiatedBy.ID == id.UserID {
		return nil
	}
	return errTopicForbidden
}
