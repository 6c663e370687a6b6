// Package display là màn hình sảnh: bảng pickup đang chờ và thông báo của trường,
// cập nhật theo sự kiện từ kênh real-time.
package display

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"safe-pickup-api-server/internal/client"
	"safe-pickup-api-server/internal/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages sent into the program by the session goroutine.
type (
	// RefreshedMsg carries the notification list fetched after a (re)connect.
	RefreshedMsg struct{ Notifications []models.Notification }
	// FrameMsg là một frame server đã được áp dụng (hoặc bỏ qua) bởi Board.
	FrameMsg struct{ Frame client.Frame }
	ConnStateMsg struct {
		Connected bool
		Err       error
	}
	markedMsg struct{ err error }
)

// Reporter báo server rằng thiết bị đã đọc một thông báo.
type Reporter interface {
	MarkNotificationRead(ctx context.Context, id, deviceID string) error
}

type Model struct {
	board         *client.Board
	tracker       *client.Tracker
	reporter      Reporter
	deviceID      string
	notifications []models.Notification
	connected     bool
	status        string
	width         int
	now           func() time.Time
}

func New(board *client.Board, tracker *client.Tracker, reporter Reporter, deviceID string) *Model {
	return &Model{
		board:    board,
		tracker:  tracker,
		reporter: reporter,
		deviceID: deviceID,
		status:   "connecting...",
		width:    80,
		now:      time.Now,
	}
}

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "m":
			return m, m.markAllRead()
		}
		return m, nil

	case ConnStateMsg:
		m.connected = msg.Connected
		switch {
		case msg.Connected:
			m.status = "live"
		case msg.Err != nil:
			m.status = "reconnecting: " + msg.Err.Error()
		default:
			m.status = "reconnecting..."
		}
		return m, nil

	case RefreshedMsg:
		m.notifications = append([]models.Notification(nil), msg.Notifications...)
		m.sortNotifications()
		m.connected = true
		m.status = "live"
		return m, nil

	case FrameMsg:
		m.applyNotificationFrame(msg.Frame)
		return m, nil

	case markedMsg:
		if msg.err != nil {
			m.status = "mark read: " + msg.err.Error()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) applyNotificationFrame(f client.Frame) {
	switch f.Type {
	case models.EventNewNotification:
		var n models.Notification
		if err := json.Unmarshal(f.Payload, &n); err != nil {
			return
		}
		for _, existing := range m.notifications {
			if existing.ID == n.ID {
				return
			}
		}
		m.notifications = append(m.notifications, n)
		m.sortNotifications()
	case models.EventNotificationsDeleted:
		var payload models.NotificationsDeletedPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			return
		}
		gone := make(map[string]struct{}, len(payload.IDs))
		for _, id := range payload.IDs {
			gone[id] = struct{}{}
		}
		kept := m.notifications[:0]
		for _, n := range m.notifications {
			if _, ok := gone[n.ID.Hex()]; !ok {
				kept = append(kept, n)
			}
		}
		m.notifications = kept
	}
}

func (m *Model) sortNotifications() {
	sort.Slice(m.notifications, func(i, j int) bool {
		return m.notifications[i].CreatedAt.After(m.notifications[j].CreatedAt)
	})
}

// markAllRead ghi nhận cục bộ trước, sau đó báo server ở nền.
func (m *Model) markAllRead() tea.Cmd {
	var ids []string
	for _, n := range m.notifications {
		id := n.ID.Hex()
		if m.tracker.IsRead(id) {
			continue
		}
		if err := m.tracker.MarkAsRead(id); err != nil {
			m.status = "mark read: " + err.Error()
			return nil
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 || m.reporter == nil {
		return nil
	}
	reporter, deviceID := m.reporter, m.deviceID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, id := range ids {
			if err := reporter.MarkNotificationRead(ctx, id, deviceID); err != nil {
				return markedMsg{err: err}
			}
		}
		return markedMsg{}
	}
}

// UnreadCount is the badge value shown in the header.
func (m *Model) UnreadCount() int {
	return m.tracker.Unread(m.notifications)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func (m *Model) View() string {
	pending := m.board.Pending()
	header := titleStyle.Render(fmt.Sprintf("SAFE PICKUP · %d waiting", len(pending)))
	if unread := m.UnreadCount(); unread > 0 {
		header += "  " + alertStyle.Render(fmt.Sprintf("● %d new", unread))
	}

	width := max(40, m.width-4)
	pickups := boxStyle.Width(width).Render(m.renderPickups(pending))
	notices := boxStyle.Width(width).Render(m.renderNotifications())

	state := mutedStyle
	if !m.connected {
		state = alertStyle
	}
	footer := state.Render(m.status) + mutedStyle.Render("  ·  m: mark read  ·  q: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, pickups, notices, footer)
}

func (m *Model) renderPickups(pending []models.PickupSummary) string {
	if len(pending) == 0 {
		return mutedStyle.Render("No pickups waiting.")
	}
	now := m.now()
	lines := make([]string, 0, len(pending))
	for _, p := range pending {
		who := p.Parent.Name
		if p.InitiatedBy.Type == models.ActorDriver {
			who = p.InitiatedBy.Name + " (driver)"
		}
		waited := now.Sub(p.PickupTime).Truncate(time.Minute)
		lines = append(lines, fmt.Sprintf("%-24s %-20s %s",
			strings.Join(p.StudentNames, ", "), who, mutedStyle.Render(waited.String())))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderNotifications() string {
	if len(m.notifications) == 0 {
		return mutedStyle.Render("No announcements.")
	}
	lines := make([]string, 0, len(m.notifications))
	for _, n := range m.notifications {
		marker := "  "
		if !m.tracker.IsRead(n.ID.Hex()) {
			marker = alertStyle.Render("● ")
		}
		lines = append(lines, marker+titleStyle.Render(n.Title)+" "+mutedStyle.Render(n.Description))
	}
	return strings.Join(lines, "\n")
}
