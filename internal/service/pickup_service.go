package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/store"
)

// Archiver lưu bản chụp các pickup trước khi xóa toàn bộ. Trả về vị trí của bản lưu.
type Archiver interface {
	ArchivePickups(ctx context.Context, pickups []models.Pickup) (string, error)
}

type CreatePickupParams struct {
	PickupCode string
	StudentIDs []string
	Students   []models.StudentInfo
	// Parent là bắt buộc khi không có DriverID.
	Parent *models.ParentSnapshot
	// DriverID, khi có, được dùng để tìm phụ huynh mà tài xế đại diện.
	DriverID string
	// InitiatedBy ghi đè người tạo khi nhân viên tạo hộ phụ huynh.
	InitiatedBy *models.ActorSnapshot
}

type TransitionParams struct {
	PickupID  string
	Status    models.PickupStatus
	UpdatedBy models.ActorSnapshot
	Notes     string
}

type PurgeResult struct {
	Count   int64  `json:"count"`
	Archive string `json:"archive,omitempty"`
}

type PickupService struct {
	pickups      store.PickupStore
	directory    store.Directory
	events       Publisher
	archiver     Archiver
	logger       *slog.Logger
	now          Clock
	delayedAfter time.Duration
}

func NewPickupService(pickups store.PickupStore, directory store.Directory, events Publisher, delayedAfter time.Duration, logger *slog.Logger) *PickupService {
	return &PickupService{
		pickups:      pickups,
		directory:    directory,
		events:       events,
		logger:       defaultLogger(logger),
		now:          systemClock,
		delayedAfter: delayedAfter,
	}
}

func (s *PickupService) SetClock(now Clock) { s.now = now }

// SetArchiver enables archiving before DeleteAll.
func (s *PickupService) SetArchiver(a Archiver) { s.archiver = a }

// uniqueIDs loại bỏ id rỗng và trùng lặp, giữ nguyên thứ tự.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Create records a new pending pickup and announces it on the global pickup topic.
func (s *PickupService) Create(ctx context.Context, params CreatePickupParams) (models.Pickup, error) {
	logger := opLogger(ctx, s.logger, "pickups", "create",
		"pickup_code", params.PickupCode, "driver_id", params.DriverID)

	pickup, err := s.create(ctx, params)
	logOutcome(logger, err, "pickup created", "pickup_id", pickup.ID.Hex())
	if err != nil {
		return models.Pickup{}, err
	}

	s.events.Publish(models.Event{Topic: models.TopicPickupsGlobal, Type: models.EventNewPickup, Payload: pickup})
	return pickup, nil
}

func (s *PickupService) create(ctx context.Context, params CreatePickupParams) (models.Pickup, error) {
	pickupCode := strings.TrimSpace(params.PickupCode)
	studentIDs := uniqueIDs(params.StudentIDs)
	if pickupCode == "" || len(studentIDs) == 0 {
		return models.Pickup{}, ErrMissingRequiredFields
	}

	var parent models.ParentSnapshot
	var initiatedBy models.ActorSnapshot

	if params.DriverID != "" {
		driver, err := s.directory.GetDriver(ctx, params.DriverID)
		if errors.Is(err, store.ErrNotFound) {
			return models.Pickup{}, ErrDriverNotFound
		} else if err != nil {
			return models.Pickup{}, fmt.Errorf("load driver: %w", err)
		}
		user, err := s.directory.GetUser(ctx, driver.ParentID)
		if errors.Is(err, store.ErrNotFound) {
			return models.Pickup{}, ErrParentNotFound
		} else if err != nil {
			return models.Pickup{}, fmt.Errorf("load parent: %w", err)
		}
		parent = user.ParentSnapshot()
		initiatedBy = driver.Snapshot()
	} else {
		if params.Parent == nil || !params.Parent.Complete() {
			return models.Pickup{}, ErrMissingParentInfo
		}
		parent = *params.Parent
		initiatedBy = models.ActorSnapshot{ID: parent.ID, Name: parent.Name, Email: parent.Email, Type: models.ActorParent}
		if params.InitiatedBy != nil && params.InitiatedBy.ID != "" {
			initiatedBy = *params.InitiatedBy
		}
	}

	info := make(map[string]models.StudentInfo, len(params.Students))
	for _, st := range params.Students {
		info[st.ID] = st
	}
	names := make([]string, 0, len(studentIDs))
	codes := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		names = append(names, info[id].Name)
		codes = append(codes, info[id].Code)
	}

	now := s.now()
	pickup := models.Pickup{
		PickupCode:   pickupCode,
		StudentIDs:   studentIDs,
		StudentNames: names,
		StudentCodes: codes,
		Parent:       parent,
		InitiatedBy:  initiatedBy,
		Status:       models.StatusPending,
		StatusHistory: []models.HistoryEntry{{
			Status:    models.StatusPending,
			UpdatedBy: initiatedBy,
			UpdatedAt: now,
		}},
		PickupTime: now,
	}
	if err := s.pickups.InsertPickup(ctx, &pickup); err != nil {
		return models.Pickup{}, fmt.Errorf("save pickup: %w", err)
	}
	return pickup, nil
}

// Transition moves a pending pickup to completed or cancelled. The write is conditional on
// the pickup still being pending; whoever loses a race gets ErrAlreadyTerminal.
func (s *PickupService) Transition(ctx context.Context, params TransitionParams) (models.Pickup, error) {
	logger := opLogger(ctx, s.logger, "pickups", "transition",
		"pickup_id", params.PickupID, "status", params.Status, "actor_id", params.UpdatedBy.ID)

	pickup, err := s.transition(ctx, params)
	logOutcome(logger, err, "pickup status updated")
	if err != nil {
		return models.Pickup{}, err
	}

	id := pickup.ID.Hex()
	payload := models.StatusUpdatedPayload{PickupID: id, Status: pickup.Status, Pickup: pickup}
	s.events.Publish(models.Event{Topic: models.TopicPickupsGlobal, Type: models.EventPickupStatusUpdated, Payload: payload})
	s.events.Publish(models.Event{Topic: models.PickupTopic(id), Type: models.EventPickupStatusUpdated, Payload: payload})
	return pickup, nil
}

func (s *PickupService) transition(ctx context.Context, params TransitionParams) (models.Pickup, error) {
	if params.PickupID == "" || params.Status == "" {
		return models.Pickup{}, ErrMissingRequiredFields
	}
	if !params.Status.IsTerminal() {
		return models.Pickup{}, fmt.Errorf("%w: cannot move to %q", ErrInvalidTransition, params.Status)
	}

	actor := params.UpdatedBy
	if actor.Type == "" {
		actor.Type = models.ActorStaff
	}
	now := s.now()
	change := store.StatusChange{
		Status: params.Status,
		Entry: models.HistoryEntry{
			Status:    params.Status,
			UpdatedBy: actor,
			UpdatedAt: now,
			Notes:     params.Notes,
		},
	}
	if params.Status == models.StatusCompleted {
		change.CompletedBy = &actor
		change.CompletedAt = &now
	}

	pickup, err := s.pickups.CompareAndSetStatus(ctx, params.PickupID, models.StatusPending, change)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.Pickup{}, ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return models.Pickup{}, ErrAlreadyTerminal
	case err != nil:
		return models.Pickup{}, fmt.Errorf("update pickup status: %w", err)
	}
	return pickup, nil
}

// Delete removes one pickup permanently.
func (s *PickupService) Delete(ctx context.Context, id string) error {
	logger := opLogger(ctx, s.logger, "pickups", "delete", "pickup_id", id)
	err := s.pickups.DeletePickup(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		err = ErrNotFound
	} else if err != nil {
		err = fmt.Errorf("delete pickup: %w", err)
	}
	logOutcome(logger, err, "pickup deleted")
	if err != nil {
		return err
	}

	payload := models.PickupDeletedPayload{PickupID: id}
	s.events.Publish(models.Event{Topic: models.TopicPickupsGlobal, Type: models.EventPickupDeleted, Payload: payload})
	s.events.Publish(models.Event{Topic: models.PickupTopic(id), Type: models.EventPickupDeleted, Payload: payload})
	return nil
}

// DeleteAll purges every pickup. When an archiver is set, the purge only happens after the
// snapshot upload succeeded, and only the archived pickups are removed; pickups created
// during the upload survive until the next purge.
func (s *PickupService) DeleteAll(ctx context.Context) (PurgeResult, error) {
	logger := opLogger(ctx, s.logger, "pickups", "delete_all")

	var (
		result PurgeResult
		n      int64
		ids    []string
		err    error
	)
	if s.archiver != nil {
		var all []models.Pickup
		all, err = s.pickups.ListAllPickups(ctx)
		if err != nil {
			err = fmt.Errorf("load pickups for archive: %w", err)
			logOutcome(logger, err, "pickups purged")
			return PurgeResult{}, err
		}
		if len(all) > 0 {
			location, err := s.archiver.ArchivePickups(ctx, all)
			if err != nil {
				err = fmt.Errorf("archive pickups: %w", err)
				logOutcome(logger, err, "pickups purged")
				return PurgeResult{}, err
			}
			result.Archive = location
		}
		ids = make([]string, 0, len(all))
		for _, p := range all {
			ids = append(ids, p.ID.Hex())
		}
		n, err = s.pickups.DeletePickups(ctx, ids)
	} else {
		n, err = s.pickups.DeleteAllPickups(ctx)
	}
	if err != nil {
		err = fmt.Errorf("delete all pickups: %w", err)
		logOutcome(logger, err, "pickups purged")
		return PurgeResult{}, err
	}
	result.Count = n
	logOutcome(logger, nil, "pickups purged", "count", n, "archive", result.Archive)

	payload := models.PickupsClearedPayload{Count: n, PickupIDs: ids}
	s.events.Publish(models.Event{Topic: models.TopicPickupsGlobal, Type: models.EventPickupsCleared, Payload: payload})
	return result, nil
}

func (s *PickupService) Get(ctx context.Context, id string) (models.Pickup, error) {
	p, err := s.pickups.GetPickup(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Pickup{}, ErrNotFound
	}
	return p, err
}

// ListByParent returns the parent's pickups, newest first.
func (s *PickupService) ListByParent(ctx context.Context, parentID string) ([]models.Pickup, error) {
	if parentID == "" {
		return nil, ErrMissingRequiredFields
	}
	return s.pickups.ListByParent(ctx, parentID)
}

// List returns the staff view ordered by pickupTime descending. Empty status lists all.
func (s *PickupService) List(ctx context.Context, status models.PickupStatus) ([]models.PickupSummary, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.pickups.ListPickups(ctx, status)
}

// Stats counts pickups per dashboard category.
func (s *PickupService) Stats(ctx context.Context) (models.PickupStats, error) {
	var stats models.PickupStats
	counts := []struct {
		dst    *int64
		filter store.CountFilter
	}{
		{&stats.Active, store.CountFilter{Status: models.StatusPending}},
		{&stats.Delayed, store.CountFilter{Status: models.StatusPending, OlderThan: s.now().Add(-s.delayedAfter)}},
		{&stats.Completed, store.CountFilter{Status: models.StatusCompleted}},
		{&stats.Cancelled, store.CountFilter{Status: models.StatusCancelled}},
	}
	for _, c := range counts {
		n, err := s.pickups.CountPickups(ctx, c.filter)
		if err != nil {
			return models.PickupStats{}, fmt.Errorf("count pickups: %w", err)
		}
		*c.dst = n
	}
	return stats, nil
}
