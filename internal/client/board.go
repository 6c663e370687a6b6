package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"safe-pickup-api-server/internal/models"
)

// Board là danh sách pickup đang chờ mà một client hiển thị. Sự kiện được áp dụng theo id,
// nên thứ tự giữa các pickup khác nhau không quan trọng.
type Board struct {
	mu      sync.RWMutex
	pending map[string]models.PickupSummary
}

func NewBoard() *Board {
	return &Board{pending: make(map[string]models.PickupSummary)}
}

// Replace thay toàn bộ bảng bằng kết quả tải lại.
func (b *Board) Replace(list []models.PickupSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = make(map[string]models.PickupSummary, len(list))
	for _, p := range list {
		if p.Status == models.StatusPending {
			b.pending[p.ID.Hex()] = p
		}
	}
}

// Apply updates the board from a pickup event. It reports whether the frame was a pickup
// event; other frames are ignored.
func (b *Board) Apply(f Frame) (bool, error) {
	switch f.Type {
	case models.EventNewPickup:
		var p models.Pickup
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return true, fmt.Errorf("decode %s: %w", f.Type, err)
		}
		b.upsert(p.Summary())
	case models.EventPickupStatusUpdated:
		var payload models.StatusUpdatedPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			return true, fmt.Errorf("decode %s: %w", f.Type, err)
		}
		b.upsert(payload.Pickup.Summary())
	case models.EventPickupDeleted:
		var payload models.PickupDeletedPayload
		if err := json.Unmarshal(f.Payload, &payload); err != nil {
			return true, fmt.Errorf("decode %s: %w", f.Type, err)
		}
		b.remove(payload.PickupID)
	case models.EventPickupsCleared:
		var payload models.PickupsClearedPayload
		if len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, &payload); err != nil {
				return true, fmt.Errorf("decode %s: %w", f.Type, err)
			}
		}
		if len(payload.PickupIDs) == 0 {
			if payload.Count > 0 {
				b.Replace(nil)
			}
			break
		}
		for _, id := range payload.PickupIDs {
			b.remove(id)
		}
	default:
		return false, nil
	}
	return true, nil
}

func (b *Board) upsert(p models.PickupSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.Status != models.StatusPending {
		delete(b.pending, p.ID.Hex())
		return
	}
	b.pending[p.ID.Hex()] = p
}

func (b *Board) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, id)
}

// Pending returns the pending pickups, newest first.
func (b *Board) Pending() []models.PickupSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.PickupSummary, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PickupTime.After(out[j].PickupTime) })
	return out
}
