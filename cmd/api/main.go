// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safe-pickup-api-server/config"
	"safe-pickup-api-server/internal/api/routes"
	"safe-pickup-api-server/internal/archive"
	"safe-pickup-api-server/internal/database"
	"safe-pickup-api-server/internal/logging"
	"safe-pickup-api-server/internal/service"
	"safe-pickup-api-server/internal/socket"
	"safe-pickup-api-server/internal/store"
	"safe-pickup-api-server/internal/store/memstore"
	"safe-pickup-api-server/internal/store/mongostore"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type stores struct {
	codes         store.CodeStore
	pickups       store.PickupStore
	directory     store.Directory
	notifications store.NotificationStore
	close         func(context.Context) error
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on restart")
		directory, err := memstore.LoadDirectory(cfg.Storage.SeedFile)
		if err != nil {
			return stores{}, err
		}
		if cfg.Storage.SeedFile == "" {
			logger.Warn("no storage.seedFile set, driver and parent lookups will fail")
		}
		return stores{
			codes:         memstore.NewCodes(),
			pickups:       memstore.NewPickups(),
			directory:     directory,
			notifications: memstore.NewNotifications(),
			close:         func(context.Context) error { return nil },
		}, nil
	}

	client, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		return stores{}, err
	}
	db := client.Database(cfg.Mongo.DBName)
	if err := database.EnsureIndexes(ctx, db, logger); err != nil {
		_ = client.Disconnect(ctx)
		return stores{}, err
	}
	logger.Info("connected to mongo", "db", cfg.Mongo.DBName)
	return stores{
		codes:         mongostore.NewCodeStore(db),
		pickups:       mongostore.NewPickupStore(db),
		directory:     mongostore.NewDirectory(db),
		notifications: mongostore.NewNotificationStore(db),
		close:         client.Disconnect,
	}, nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Kết nối kho dữ liệu
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close(context.Background())

	// 3. Event Hub và các service
	hub := socket.NewHub(cfg.WebSocket.SendBuffer, logger)
	codes := service.NewCodeService(st.codes, st.directory, hub, cfg.Codes.DefaultTTL, logger)
	pickups := service.NewPickupService(st.pickups, st.directory, hub, cfg.Pickups.DelayedAfter, logger)
	notifications := service.NewNotificationService(st.notifications, hub, logger)

	if cfg.S3.Enabled() {
		uploader, err := archive.NewUploader(ctx, cfg.S3)
		if err != nil {
			return err
		}
		pickups.SetArchiver(uploader)
		logger.Info("pickup purge archive enabled", "bucket", cfg.S3.Bucket)
	}

	// 4. Router
	router := routes.SetupRouter(routes.Dependencies{
		Config:        cfg,
		Hub:           hub,
		Codes:         codes,
		Pickups:       pickups,
		Notifications: notifications,
		Logger:        logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Start server
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting API server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		// Ngắt session trước để các kết nối WebSocket không giữ Shutdown.
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
