package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"safe-pickup-api-server/internal/models"
)

// UnreadCount = |fetched| - |fetched ∩ read|, không bao giờ âm. Id trùng trong fetched chỉ
// được tính một lần.
func UnreadCount(fetched []string, read map[string]struct{}) int {
	seen := make(map[string]struct{}, len(fetched))
	readCount := 0
	for _, id := range fetched {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := read[id]; ok {
			readCount++
		}
	}
	return max(0, len(seen)-readCount)
}

// Tracker giữ tập id thông báo đã đọc của một thiết bị, lưu ra file JSON.
type Tracker struct {
	mu   sync.Mutex
	path string
	read map[string]struct{}
}

// OpenTracker nạp tập đã đọc từ path. File chưa tồn tại thì bắt đầu rỗng.
func OpenTracker(path string) (*Tracker, error) {
	t := &Tracker{path: path, read: make(map[string]struct{})}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tracker file: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode tracker file: %w", err)
	}
	for _, id := range ids {
		t.read[id] = struct{}{}
	}
	return t, nil
}

// MarkAsRead adds id to the read set and persists it. Marking twice is harmless.
func (t *Tracker) MarkAsRead(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.read[id]; ok {
		return nil
	}
	t.read[id] = struct{}{}
	return t.saveLocked()
}

func (t *Tracker) IsRead(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.read[id]
	return ok
}

// Unread đếm số thông báo chưa đọc trong danh sách vừa tải.
func (t *Tracker) Unread(fetched []models.Notification) int {
	ids := make([]string, 0, len(fetched))
	for _, n := range fetched {
		ids = append(ids, n.ID.Hex())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return UnreadCount(ids, t.read)
}

// Prune bỏ các id không còn trong danh sách của server để file không lớn dần.
func (t *Tracker) Prune(fetched []models.Notification) error {
	keep := make(map[string]struct{}, len(fetched))
	for _, n := range fetched {
		keep[n.ID.Hex()] = struct{}{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := false
	for id := range t.read {
		if _, ok := keep[id]; !ok {
			delete(t.read, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return t.saveLocked()
}

// saveLocked ghi ra file tạm rồi đổi tên để không bao giờ để lại file hỏng.
func (t *Tracker) saveLocked() error {
	ids := make([]string, 0, len(t.read))
	for id := range t.read {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create tracker dir: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write tracker file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replace tracker file: %w", err)
	}
	return nil
}
