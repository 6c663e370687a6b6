// Package client là phía thiết bị của kênh real-time: phiên kết nối tự nối lại, bảng pickup
// đang chờ và theo dõi thông báo đã đọc. Kênh real-time chỉ là gợi ý làm mới; mỗi lần
// (re)connect client đều tải lại toàn bộ trạng thái từ REST API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/socket"

	"github.com/gorilla/websocket"
)

// Frame is a server message with its payload left undecoded.
type Frame struct {
	Topic   string           `json:"topic"`
	Type    models.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

type SessionConfig struct {
	// URL của endpoint WebSocket, ví dụ ws://localhost:8080/api/v1/ws
	URL   string
	Token string
	// Topics được đăng ký thêm ngoài các topic mặc định của vai trò.
	Topics []string
	// Refetch được gọi mỗi khi server xác nhận phiên mới (frame session-ready).
	Refetch func(ctx context.Context) error
	// OnFrame nhận mọi frame khác. Được gọi tuần tự trên goroutine đọc.
	OnFrame func(Frame)
	// OnDisconnect được gọi mỗi khi kết nối bị mất, trước khi chờ backoff.
	OnDisconnect func(error)

	MinBackoff time.Duration
	MaxBackoff time.Duration
	// ReadTimeout ngắt kết nối nếu không nhận được gì (kể cả ping) trong khoảng này.
	ReadTimeout time.Duration
	Dialer      *websocket.Dialer
	Logger      *slog.Logger
}

func (c *SessionConfig) setDefaults() {
	if c.MinBackoff <= 0 {
		c.MinBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = max(30*time.Second, c.MinBackoff)
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 90 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.OnFrame == nil {
		c.OnFrame = func(Frame) {}
	}
}

// Run giữ phiên kết nối cho tới khi ctx bị hủy, tự kết nối lại với backoff tăng dần.
func Run(ctx context.Context, cfg SessionConfig) error {
	cfg.setDefaults()
	backoff := cfg.MinBackoff
	for {
		connected, err := runOnce(ctx, cfg)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = cfg.MinBackoff
		}
		cfg.Logger.Warn("session lost, reconnecting", "error", err, "backoff", backoff)
		if cfg.OnDisconnect != nil {
			cfg.OnDisconnect(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}

func sessionURL(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse session url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// runOnce chạy một kết nối. connected cho biết server đã xác nhận phiên hay chưa.
func runOnce(ctx context.Context, cfg SessionConfig) (connected bool, err error) {
	target, err := sessionURL(cfg.URL, cfg.Token)
	if err != nil {
		return false, err
	}
	conn, _, err := cfg.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	extend := func() { conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout)) }
	extend()
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for _, topic := range cfg.Topics {
		if err := conn.WriteJSON(socket.ControlFrame{Action: socket.ActionSubscribe, Topic: topic}); err != nil {
			return false, fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return connected, fmt.Errorf("read: %w", err)
		}
		extend()
		if frame.Type == models.EventSessionReady {
			connected = true
			if cfg.Refetch != nil {
				if err := cfg.Refetch(ctx); err != nil {
					// Không có trạng thái mới thì dữ liệu hiển thị có thể đã cũ; kết nối lại để thử lại.
					return connected, fmt.Errorf("refetch: %w", err)
				}
			}
			continue
		}
		cfg.OnFrame(frame)
	}
}
