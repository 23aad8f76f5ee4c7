package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/ira-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
	"github.com/0xcro3dile/ira-go/internal/domain/usecases"
	"github.com/0xcro3dile/ira-go/internal/infrastructure/config"
	irahttp "github.com/0xcro3dile/ira-go/internal/infrastructure/http"
)

// newWatcher is replaced in tests.
var newWatcher = func(logger *zap.Logger) (ports.FileWatcher, error) {
	return filewatcher.NewFSNotifyWatcher(nil, 0, logger)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		return serve(ctx, a, cfg, logger)
	},
}

// serve runs the HTTP server and, when enabled, the upload watcher until ctx
// is done. The watcher is set up first so a failure there starts nothing.
func serve(ctx context.Context, a *app, c *config.Config, logger *zap.Logger) error {
	if err := os.MkdirAll(c.Ingest.DataDir, 0o755); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var events <-chan ports.FileEvent
	if c.Ingest.Watch {
		watcher, err := newWatcher(logger.Named("watcher"))
		if err != nil {
			return fmt.Errorf("creating upload watcher: %w", err)
		}
		defer watcher.Stop()

		events, err = watcher.Watch(ctx, c.Ingest.DataDir)
		if err != nil {
			return fmt.Errorf("watching %s: %w", c.Ingest.DataDir, err)
		}
	}

	server := irahttp.NewServer(c.Server.Addr, irahttp.Dependencies{
		Sessions:       a.sessions,
		Ingest:         a.ingest,
		Store:          a.store,
		Metrics:        a.metrics,
		DataDir:        c.Ingest.DataDir,
		MaxUploadBytes: c.Session.MaxUploadBytes,
		Logger:         logger.Named("http"),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	if events != nil {
		g.Go(func() error {
			autoIngest(ctx, a.ingest, events, logger.Named("watcher"))
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// autoIngest indexes files as they appear in the upload directory.
// Deletions leave the index untouched.
func autoIngest(ctx context.Context, ingest *usecases.IngestUseCase, events <-chan ports.FileEvent, logger *zap.Logger) {
	for event := range events {
		if event.Operation == ports.FileDeleted || !ingest.Supports(event.Path) {
			continue
		}
		n, err := ingest.IngestFile(ctx, event.Path)
		if err != nil {
			logger.Warn("auto-ingest failed", zap.String("path", event.Path), zap.Error(err))
			continue
		}
		logger.Info("auto-ingested document",
			zap.String("path", event.Path),
			zap.String("operation", event.Operation.String()),
			zap.Int("chunks", n))
	}
}
