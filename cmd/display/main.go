// cmd/display/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"safe-pickup-api-server/config"
	"safe-pickup-api-server/internal/client"
	"safe-pickup-api-server/internal/display"
	"safe-pickup-api-server/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "display: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadDisplayConfig("./config")
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.New(logOut, cfg.LogLevel, "text")

	tracker, err := client.OpenTracker(cfg.StateFile)
	if err != nil {
		return err
	}
	api := client.NewAPI(cfg.ServerURL, cfg.Token)
	board := client.NewBoard()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := tea.NewProgram(display.New(board, tracker, api, cfg.DeviceID), tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	sessionCtx, cancelSession := context.WithCancel(gctx)
	g.Go(func() error {
		err := client.Run(sessionCtx, client.SessionConfig{
			URL:   cfg.WebSocketURL(),
			Token: cfg.Token,
			Refetch: func(ctx context.Context) error {
				pending, err := api.PendingPickups(ctx)
				if err != nil {
					p.Send(display.ConnStateMsg{Err: err})
					return err
				}
				notifications, err := api.Notifications(ctx)
				if err != nil {
					p.Send(display.ConnStateMsg{Err: err})
					return err
				}
				board.Replace(pending)
				if err := tracker.Prune(notifications); err != nil {
					logger.Warn("prune read notifications", "error", err)
				}
				p.Send(display.RefreshedMsg{Notifications: notifications})
				logger.Info("state refreshed", "pending", len(pending), "notifications", len(notifications))
				return nil
			},
			OnFrame: func(f client.Frame) {
				if _, err := board.Apply(f); err != nil {
					logger.Warn("apply frame", "type", f.Type, "error", err)
				}
				p.Send(display.FrameMsg{Frame: f})
			},
			OnDisconnect: func(err error) {
				p.Send(display.ConnStateMsg{Err: err})
			},
			Logger: logger,
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer cancelSession()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
