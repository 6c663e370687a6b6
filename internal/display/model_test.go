package display

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"safe-pickup-api-server/internal/client"
	"safe-pickup-api-server/internal/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeReporter struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (r *fakeReporter) MarkNotificationRead(ctx context.Context, id, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.ids = append(r.ids, id+"@"+deviceID)
	return nil
}

func newModel(t *testing.T, reporter Reporter) *Model {
	t.Helper()
	tracker, err := client.OpenTracker(filepath.Join(t.TempDir(), "read.json"))
	require.NoError(t, err)
	m := New(client.NewBoard(), tracker, reporter, "lobby-1")
	m.now = func() time.Time { return time.Date(2024, 9, 2, 15, 30, 0, 0, time.UTC) }
	return m
}

func notificationFrame(t *testing.T, typ models.EventType, payload interface{}) FrameMsg {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return FrameMsg{Frame: client.Frame{Topic: models.TopicNotificationsGlobal, Type: typ, Payload: data}}
}

func TestModelTracksNotifications(t *testing.T) {
	m := newModel(t, nil)
	base := time.Date(2024, 9, 2, 15, 0, 0, 0, time.UTC)
	n1 := models.Notification{ID: primitive.NewObjectID(), Title: "Early dismissal", CreatedAt: base}
	n2 := models.Notification{ID: primitive.NewObjectID(), Title: "Rain plan", CreatedAt: base.Add(time.Minute)}

	m.Update(RefreshedMsg{Notifications: []models.Notification{n1}})
	assert.Equal(t, 1, m.UnreadCount())

	m.Update(notificationFrame(t, models.EventNewNotification, n2))
	m.Update(notificationFrame(t, models.EventNewNotification, n2))
	require.Len(t, m.notifications, 2)
	assert.Equal(t, n2.ID, m.notifications[0].ID)
	assert.Equal(t, 2, m.UnreadCount())

	m.Update(notificationFrame(t, models.EventNotificationsDeleted, models.NotificationsDeletedPayload{IDs: []string{n1.ID.Hex()}}))
	require.Len(t, m.notifications, 1)
	assert.Equal(t, 1, m.UnreadCount())
}

func TestModelMarkAllRead(t *testing.T) {
	reporter := &fakeReporter{}
	m := newModel(t, reporter)
	n := models.Notification{ID: primitive.NewObjectID(), Title: "Hello"}
	m.Update(RefreshedMsg{Notifications: []models.Notification{n}})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	require.NotNil(t, cmd)
	assert.Equal(t, 0, m.UnreadCount(), "marked locally before the server is told")

	msg := cmd()
	m.Update(msg)
	assert.Equal(t, []string{n.ID.Hex() + "@lobby-1"}, reporter.ids)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	assert.Nil(t, cmd, "nothing left to report")
}

func TestModelReportFailureKeepsLocalState(t *testing.T) {
	m := newModel(t, &fakeReporter{fail: errors.New("offline")})
	n := models.Notification{ID: primitive.NewObjectID(), Title: "Hello"}
	m.Update(RefreshedMsg{Notifications: []models.Notification{n}})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, 0, m.UnreadCount())
	assert.Contains(t, m.status, "offline")
}

func TestModelView(t *testing.T) {
	m := newModel(t, nil)
	assert.Contains(t, m.View(), "No pickups waiting.")

	m.board.Replace([]models.PickupSummary{{
		ID:           primitive.NewObjectID(),
		StudentNames: []string{"An", "Bao"},
		Parent:       models.ParentSnapshot{Name: "Lan Nguyen"},
		InitiatedBy:  models.ActorSnapshot{Name: "Minh", Type: models.ActorDriver},
		Status:       models.StatusPending,
		PickupTime:   m.now().Add(-12 * time.Minute),
	}})
	m.Update(ConnStateMsg{Connected: true})
	view := m.View()
	assert.Contains(t, view, "1 waiting")
	assert.Contains(t, view, "An, Bao")
	assert.Contains(t, view, "Minh (driver)")
	assert.Contains(t, view, "12m0s")
	assert.Contains(t, view, "live")

	m.Update(ConnStateMsg{Err: errors.New("dial refused")})
	assert.Contains(t, m.View(), "reconnecting: dial refused")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
