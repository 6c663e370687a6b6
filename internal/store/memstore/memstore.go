// Package memstore là bản cài đặt trong bộ nhớ của các store, dùng khi storage.driver=memory
// và trong test. Mọi giá trị trả về đều là bản sao.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ store.CodeStore         = (*Codes)(nil)
	_ store.PickupStore       = (*Pickups)(nil)
	_ store.Directory         = (*Directory)(nil)
	_ store.NotificationStore = (*Notifications)(nil)
)

// ---------- codes ----------

type Codes struct {
	mu    sync.RWMutex
	codes map[string]*models.QRCode
}

func NewCodes() *Codes {
	return &Codes{codes: make(map[string]*models.QRCode)}
}

func copyCode(q *models.QRCode) models.QRCode {
	out := *q
	out.Scans = append([]models.Scan(nil), q.Scans...)
	return out
}

func (s *Codes) InsertCode(ctx context.Context, code *models.QRCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code.Code]; ok {
		return store.ErrConflict
	}
	if code.ID.IsZero() {
		code.ID = primitive.NewObjectID()
	}
	c := copyCode(code)
	s.codes[code.Code] = &c
	return nil
}

func (s *Codes) GetCode(ctx context.Context, code string) (models.QRCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.codes[code]
	if !ok {
		return models.QRCode{}, store.ErrNotFound
	}
	return copyCode(q), nil
}

func (s *Codes) FindVerifiable(ctx context.Context, code string, now time.Time) (models.QRCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.codes[code]
	if !ok || !q.Verifiable(now) {
		return models.QRCode{}, store.ErrNotFound
	}
	return copyCode(q), nil
}

func (s *Codes) AppendScan(ctx context.Context, code string, scan models.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.codes[code]
	if !ok {
		return store.ErrNotFound
	}
	q.Scans = append(q.Scans, scan)
	return nil
}

func (s *Codes) Deactivate(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.codes[code]
	if !ok || !q.IsActive {
		return store.ErrNotFound
	}
	q.IsActive = false
	return nil
}

func (s *Codes) DeleteCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code]; !ok {
		return store.ErrNotFound
	}
	delete(s.codes, code)
	return nil
}

func (s *Codes) ListActive(ctx context.Context, schoolID string, now time.Time) ([]models.QRCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.QRCode{}
	for _, q := range s.codes {
		if !q.Verifiable(now) || (schoolID != "" && q.SchoolID != schoolID) {
			continue
		}
		out = append(out, copyCode(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---------- pickups ----------

type Pickups struct {
	mu      sync.RWMutex
	pickups map[string]*models.Pickup
}

func NewPickups() *Pickups {
	return &Pickups{pickups: make(map[string]*models.Pickup)}
}

func copyPickup(p *models.Pickup) models.Pickup {
	out := *p
	out.StudentIDs = append([]string(nil), p.StudentIDs...)
	out.StudentNames = append([]string(nil), p.StudentNames...)
	out.StudentCodes = append([]string(nil), p.StudentCodes...)
	out.StatusHistory = append([]models.HistoryEntry(nil), p.StatusHistory...)
	if p.CompletedBy != nil {
		cb := *p.CompletedBy
		out.CompletedBy = &cb
	}
	if p.CompletedAt != nil {
		ca := *p.CompletedAt
		out.CompletedAt = &ca
	}
	return out
}

func (s *Pickups) InsertPickup(ctx context.Context, p *models.Pickup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	c := copyPickup(p)
	s.pickups[p.ID.Hex()] = &c
	return nil
}

func (s *Pickups) GetPickup(ctx context.Context, id string) (models.Pickup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pickups[id]
	if !ok {
		return models.Pickup{}, store.ErrNotFound
	}
	return copyPickup(p), nil
}

func (s *Pickups) CompareAndSetStatus(ctx context.Context, id string, from models.PickupStatus, change store.StatusChange) (models.Pickup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pickups[id]
	if !ok {
		return models.Pickup{}, store.ErrNotFound
	}
	if p.Status != from {
		return models.Pickup{}, store.ErrConflict
	}
	p.Status = change.Status
	p.StatusHistory = append(p.StatusHistory, change.Entry)
	if change.CompletedBy != nil {
		cb := *change.CompletedBy
		p.CompletedBy = &cb
	}
	if change.CompletedAt != nil {
		ca := *change.CompletedAt
		p.CompletedAt = &ca
	}
	return copyPickup(p), nil
}

func (s *Pickups) DeletePickup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pickups[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.pickups, id)
	return nil
}

func (s *Pickups) DeleteAllPickups(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.pickups))
	s.pickups = make(map[string]*models.Pickup)
	return n, nil
}

func (s *Pickups) DeletePickups(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.pickups[id]; ok {
			delete(s.pickups, id)
			n++
		}
	}
	return n, nil
}

// sorted trả về bản sao các pickup khớp keep, mới nhất trước.
func (s *Pickups) sorted(keep func(*models.Pickup) bool) []models.Pickup {
	out := []models.Pickup{}
	for _, p := range s.pickups {
		if keep(p) {
			out = append(out, copyPickup(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PickupTime.After(out[j].PickupTime) })
	return out
}

func (s *Pickups) ListByParent(ctx context.Context, parentID string) ([]models.Pickup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(p *models.Pickup) bool { return p.Parent.ID == parentID }), nil
}

func (s *Pickups) ListPickups(ctx context.Context, status models.PickupStatus) ([]models.PickupSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.sorted(func(p *models.Pickup) bool { return status == "" || p.Status == status })
	out := make([]models.PickupSummary, 0, len(list))
	for _, p := range list {
		out = append(out, p.Summary())
	}
	return out, nil
}

func (s *Pickups) ListAllPickups(ctx context.Context) ([]models.Pickup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(*models.Pickup) bool { return true }), nil
}

func (s *Pickups) CountPickups(ctx context.Context, filter store.CountFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.pickups {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if !filter.OlderThan.IsZero() && !p.PickupTime.Before(filter.OlderThan) {
			continue
		}
		n++
	}
	return n, nil
}

// ---------- directory ----------

// Directory giữ tài xế và người dùng được nạp sẵn bằng PutDriver/PutUser.
type Directory struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
	users   map[string]models.User
}

func NewDirectory() *Directory {
	return &Directory{
		drivers: make(map[string]models.Driver),
		users:   make(map[string]models.User),
	}
}

func (d *Directory) PutDriver(driver models.Driver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drivers[driver.ID] = driver
}

func (d *Directory) PutUser(user models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *Directory) GetDriver(ctx context.Context, id string) (models.Driver, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	driver, ok := d.drivers[id]
	if !ok {
		return models.Driver{}, store.ErrNotFound
	}
	return driver, nil
}

func (d *Directory) GetUser(ctx context.Context, id string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

// ---------- notifications ----------

type Notifications struct {
	mu    sync.RWMutex
	items map[string]*models.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{items: make(map[string]*models.Notification)}
}

func (s *Notifications) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.items))
	for _, n := range s.items {
		c := *n
		c.ReadBy = append([]string(nil), n.ReadBy...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Notifications) InsertNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	c := *n
	c.ReadBy = append([]string(nil), n.ReadBy...)
	s.items[n.ID.Hex()] = &c
	return nil
}

func (s *Notifications) DeleteNotifications(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func (s *Notifications) MarkRead(ctx context.Context, id, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, d := range n.ReadBy {
		if d == deviceID {
			return nil
		}
	}
	n.ReadBy = append(n.ReadBy, deviceID)
	return nil
}
