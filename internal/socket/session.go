// internal/socket/session.go
package socket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Session là trạng thái đăng ký của một client đang kết nối (app phụ huynh, app tài xế,
// dashboard quản trị, màn hình sảnh).
type Session struct {
	id     string
	role   string
	userID string
	send   chan []byte
	// topics được bảo vệ bởi Hub.mu.
	topics map[string]struct{}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Role() string   { return s.role }
func (s *Session) UserID() string { return s.userID }

// Outbox trả về hàng đợi frame đã mã hóa JSON; bị đóng khi session bị hủy đăng ký.
func (s *Session) Outbox() <-chan []byte { return s.send }

// Control actions a client may send.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ControlFrame là tin nhắn client gửi lên qua WebSocket.
type ControlFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

var errBinaryFrame = errors.New("unexpected binary frame")

type PumpConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteTimeout time.Duration
}

// WritePump chuyển frame từ outbox ra kết nối và gửi ping định kỳ. Trả về khi outbox
// bị đóng hoặc ghi lỗi; lúc đó kết nối bị đóng.
func WritePump(conn *websocket.Conn, s *Session, cfg PumpConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case frame, ok := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump đọc control frame cho tới khi kết nối đóng. Mỗi pong hoặc ping từ client
// gia hạn read deadline. Lỗi đóng kết nối bình thường trả về nil.
func ReadPump(conn *websocket.Conn, cfg PumpConfig, handle func(ControlFrame)) error {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		op, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}
			return nil
		}
		if op == websocket.BinaryMessage {
			return errBinaryFrame
		}
		var frame ControlFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			handle(ControlFrame{Action: "invalid"})
			continue
		}
		handle(frame)
	}
}
