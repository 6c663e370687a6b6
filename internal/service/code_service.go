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

	"github.com/google/uuid"
)

// VerifyActor là người trình mã: phụ huynh (kèm học sinh tùy chọn) hoặc tài xế, không bao giờ cả hai.
type VerifyActor struct {
	ParentID  string `json:"parentId"`
	StudentID string `json:"studentId"`
	DriverID  string `json:"driverId"`
}

// Validate enforces that exactly one of ParentID or DriverID is set.
func (a VerifyActor) Validate() error {
	hasParent := a.ParentID != ""
	hasDriver := a.DriverID != ""
	if hasParent == hasDriver {
		return ErrInvalidActorSpecification
	}
	if hasDriver && a.StudentID != "" {
		return ErrInvalidActorSpecification
	}
	return nil
}

type VerifyResult struct {
	SchoolID string `json:"schoolId"`
	ParentID string `json:"parentId"`
	DriverID string `json:"driverId,omitempty"`
}

type GenerateCodeParams struct {
	SchoolID string
	// ExpiresAt mặc định là now + defaultTTL khi để trống.
	ExpiresAt time.Time
}

type CodeService struct {
	codes      store.CodeStore
	directory  store.Directory
	events     Publisher
	logger     *slog.Logger
	now        Clock
	defaultTTL time.Duration
}

func NewCodeService(codes store.CodeStore, directory store.Directory, events Publisher, defaultTTL time.Duration, logger *slog.Logger) *CodeService {
	return &CodeService{
		codes:      codes,
		directory:  directory,
		events:     events,
		logger:     defaultLogger(logger),
		now:        systemClock,
		defaultTTL: defaultTTL,
	}
}

// SetClock replaces the time source.
func (s *CodeService) SetClock(now Clock) { s.now = now }

func newCodeToken() string {
	return "QR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (s *CodeService) signalCodesChanged() {
	s.events.Publish(models.Event{Topic: models.TopicCodesGlobal, Type: models.EventQRCodeUpdated})
}

// Generate issues a new active code for a school.
func (s *CodeService) Generate(ctx context.Context, params GenerateCodeParams) (models.QRCode, error) {
	logger := opLogger(ctx, s.logger, "codes", "generate", "school_id", params.SchoolID)

	if strings.TrimSpace(params.SchoolID) == "" {
		logOutcome(logger, ErrMissingRequiredFields, "generate code")
		return models.QRCode{}, ErrMissingRequiredFields
	}
	now := s.now()
	expiresAt := params.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.defaultTTL)
	}
	if !expiresAt.After(now) {
		err := fmt.Errorf("%w: expiresAt must be in the future", ErrInvalidInput)
		logOutcome(logger, err, "generate code")
		return models.QRCode{}, err
	}

	code := models.QRCode{
		Code:      newCodeToken(),
		SchoolID:  params.SchoolID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		IsActive:  true,
		Scans:     []models.Scan{},
	}
	if err := s.codes.InsertCode(ctx, &code); err != nil {
		err = fmt.Errorf("save qr code: %w", err)
		logOutcome(logger, err, "generate code")
		return models.QRCode{}, err
	}

	logOutcome(logger, nil, "code generated", "code", code.Code, "expires_at", expiresAt)
	s.signalCodesChanged()
	return code, nil
}

// Verify validates a presented code and records the scan. The code stays active.
func (s *CodeService) Verify(ctx context.Context, code string, actor VerifyActor) (VerifyResult, error) {
	logger := opLogger(ctx, s.logger, "codes", "verify",
		"code", code, "parent_id", actor.ParentID, "driver_id", actor.DriverID)

	result, err := s.verify(ctx, code, actor)
	logOutcome(logger, err, "code verified", "school_id", result.SchoolID)
	return result, err
}

func (s *CodeService) verify(ctx context.Context, code string, actor VerifyActor) (VerifyResult, error) {
	if err := actor.Validate(); err != nil {
		return VerifyResult{}, err
	}
	if strings.TrimSpace(code) == "" {
		return VerifyResult{}, ErrMissingRequiredFields
	}

	now := s.now()
	qr, err := s.codes.FindVerifiable(ctx, code, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, ErrInvalidOrExpired
		}
		return VerifyResult{}, fmt.Errorf("load qr code: %w", err)
	}

	result := VerifyResult{SchoolID: qr.SchoolID}
	scan := models.Scan{Timestamp: now}

	if actor.DriverID != "" {
		driver, err := s.directory.GetDriver(ctx, actor.DriverID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, fmt.Errorf("load driver: %w", err)
		}
		if err != nil || !driver.Active() {
			return VerifyResult{}, ErrUnknownOrInactiveDriver
		}
		scan.ActorKind = models.ScanByDriver
		scan.ActorID = driver.ID
		scan.ParentID = driver.ParentID
		result.DriverID = driver.ID
		result.ParentID = driver.ParentID
	} else {
		scan.ActorKind = models.ScanByParent
		scan.ActorID = actor.ParentID
		scan.ParentID = actor.ParentID
		scan.StudentID = actor.StudentID
		result.ParentID = actor.ParentID
	}

	// Chỉ nối thêm vào danh sách scan, không đọc-sửa-ghi, nên các lần quét đồng thời đều được ghi lại.
	if err := s.codes.AppendScan(ctx, qr.Code, scan); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, ErrInvalidOrExpired
		}
		return VerifyResult{}, fmt.Errorf("record scan: %w", err)
	}
	return result, nil
}

// Deactivate turns off an active code. An already inactive or unknown code is ErrNotFound.
func (s *CodeService) Deactivate(ctx context.Context, code string) error {
	logger := opLogger(ctx, s.logger, "codes", "deactivate", "code", code)
	err := s.codes.Deactivate(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		err = ErrNotFound
	} else if err != nil {
		err = fmt.Errorf("deactivate qr code: %w", err)
	}
	logOutcome(logger, err, "code deactivated")
	if err != nil {
		return err
	}
	s.signalCodesChanged()
	return nil
}

func (s *CodeService) Delete(ctx context.Context, code string) error {
	logger := opLogger(ctx, s.logger, "codes", "delete", "code", code)
	err := s.codes.DeleteCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		err = ErrNotFound
	} else if err != nil {
		err = fmt.Errorf("delete qr code: %w", err)
	}
	logOutcome(logger, err, "code deleted")
	if err != nil {
		return err
	}
	s.signalCodesChanged()
	return nil
}

func (s *CodeService) Get(ctx context.Context, code string) (models.QRCode, error) {
	qr, err := s.codes.GetCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return models.QRCode{}, ErrNotFound
	}
	return qr, err
}

// ListActive returns the codes clients should show after a (re)connect.
func (s *CodeService) ListActive(ctx context.Context, schoolID string) ([]models.QRCode, error) {
	return s.codes.ListActive(ctx, schoolID, s.now())
}
