// internal/socket/hub.go
package socket

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"safe-pickup-api-server/internal/models"

	"github.com/google/uuid"
)

// Hub là broker publish/subscribe trong tiến trình. Mỗi session có một hàng đợi gửi riêng;
// sự kiện được giao tối đa một lần, không lưu lại, không phát lại.
type Hub struct {
	// mu bảo vệ sessions, topics và trạng thái đăng ký của từng session.
	mu       sync.RWMutex
	sessions map[string]*Session
	topics   map[string]map[string]*Session

	bufferSize int
	logger     *slog.Logger
}

// NewHub tạo một Hub mới. bufferSize là số frame tối đa chờ gửi cho mỗi session.
func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions:   make(map[string]*Session),
		topics:     make(map[string]map[string]*Session),
		bufferSize: bufferSize,
		logger:     logger.With("component", "hub"),
	}
}

// Register thêm một session mới vào Hub.
func (h *Hub) Register(role, userID string) *Session {
	s := &Session{
		id:     uuid.NewString(),
		role:   role,
		userID: userID,
		send:   make(chan []byte, h.bufferSize),
		topics: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	h.logger.Info("session registered", "session_id", s.id, "role", role, "user_id", userID)
	return s
}

// Unregister xóa session khỏi mọi topic và đóng hàng đợi gửi. Gọi nhiều lần vẫn an toàn.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	removed := h.unregisterLocked(s)
	h.mu.Unlock()
	if removed {
		h.logger.Info("session unregistered", "session_id", s.id)
	}
}

func (h *Hub) unregisterLocked(s *Session) bool {
	if _, ok := h.sessions[s.id]; !ok {
		return false
	}
	delete(h.sessions, s.id)
	for topic := range s.topics {
		h.removeFromTopicLocked(s, topic)
	}
	s.topics = map[string]struct{}{}
	close(s.send)
	return true
}

func (h *Hub) removeFromTopicLocked(s *Session, topic string) {
	subs := h.topics[topic]
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Subscribe adds the session to topic. Subscribing twice is a no-op, as is subscribing
// an unregistered session.
func (h *Hub) Subscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.id]; !ok {
		return
	}
	subs := h.topics[topic]
	if subs == nil {
		subs = make(map[string]*Session)
		h.topics[topic] = subs
	}
	subs[s.id] = s
	s.topics[topic] = struct{}{}
}

// Unsubscribe removes the session from topic. Unknown topics are ignored.
func (h *Hub) Unsubscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := s.topics[topic]; !ok {
		return
	}
	delete(s.topics, topic)
	h.removeFromTopicLocked(s, topic)
}

// Topics returns the session's subscriptions in sorted order.
func (h *Hub) Topics(s *Session) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Publish giao ev tới mọi session đang đăng ký ev.Topic. Session có hàng đợi đầy bị ngắt
// kết nối; khi kết nối lại, client sẽ tải lại toàn bộ trạng thái.
func (h *Hub) Publish(ev models.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event failed", "topic", ev.Topic, "type", ev.Type, "error", err)
		return
	}

	var slow []*Session
	h.mu.RLock()
	for _, s := range h.topics[ev.Topic] {
		select {
		case s.send <- frame:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.logger.Warn("send buffer full, dropping session", "session_id", s.id, "topic", ev.Topic, "type", ev.Type)
		h.Unregister(s)
	}
}

// SendTo giao một frame trực tiếp cho một session, không qua topic.
func (h *Hub) SendTo(s *Session, ev models.Event) bool {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal frame failed", "type", ev.Type, "error", err)
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.sessions[s.id]; !ok {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close ngắt mọi session, dùng khi tắt server.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		h.unregisterLocked(s)
	}
}
