package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/service"
	"safe-pickup-api-server/internal/store/memstore"
	"safe-pickup-api-server/internal/testfixtures"
)

type fixture struct {
	clock         *testfixtures.Clock
	events        *testfixtures.Publisher
	codeStore     *memstore.Codes
	pickupStore   *memstore.Pickups
	directory     *memstore.Directory
	codes         *service.CodeService
	pickups       *service.PickupService
	notifications *service.NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		clock:       testfixtures.NewClock(time.Time{}),
		events:      &testfixtures.Publisher{},
		codeStore:   memstore.NewCodes(),
		pickupStore: memstore.NewPickups(),
		directory:   memstore.NewDirectory(),
	}
	f.directory.PutUser(models.User{ID: "p1", Name: "Lan Nguyen", Email: "lan@example.com", Role: "parent"})
	f.directory.PutDriver(models.Driver{ID: "d1", ParentID: "p1", Name: "Minh Tran", Email: "minh@example.com", IsRegistered: true})
	f.directory.PutDriver(models.Driver{ID: "d2", ParentID: "p1", Name: "Unregistered", IsRegistered: false})
	f.directory.PutDriver(models.Driver{ID: "d3", ParentID: "ghost", Name: "Orphan", IsRegistered: true})

	f.codes = service.NewCodeService(f.codeStore, f.directory, f.events, 24*time.Hour, logger)
	f.codes.SetClock(f.clock.Now)
	f.pickups = service.NewPickupService(f.pickupStore, f.directory, f.events, 15*time.Minute, logger)
	f.pickups.SetClock(f.clock.Now)
	f.notifications = service.NewNotificationService(memstore.NewNotifications(), f.events, logger)
	f.notifications.SetClock(f.clock.Now)
	return f
}

func (f *fixture) parentPickup(t *testing.T, studentIDs ...string) models.Pickup {
	t.Helper()
	p, err := f.pickups.Create(context.Background(), service.CreatePickupParams{
		PickupCode: "QR-TEST",
		StudentIDs: studentIDs,
		Parent:     &models.ParentSnapshot{ID: "p1", Name: "Lan Nguyen", Email: "lan@example.com"},
	})
	if err != nil {
		t.Fatalf("create pickup: %v", err)
	}
	return p
}
