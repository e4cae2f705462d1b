package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fbz-tec/chxport/core/ingest"
	"github.com/fbz-tec/chxport/core/progress"
	"github.com/fbz-tec/chxport/core/tasks"
	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/fbz-tec/chxport/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serverAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serverAddr, "addr", "", "Listen address (overrides SERVER_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serverAddr != "" {
		cfg.ServerAddr = serverAddr
	}

	uploads, err := server.NewUploadStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	svc, closeStore := newService(cfg, ingest.WithUploadDir(uploads.Dir()))
	defer closeStore()

	tracker := progress.NewMemoryTracker(cfg.CompletedRetention, cfg.FailedRetention)
	janitor, err := progress.NewJanitor(tracker, cfg.SweepSchedule)
	if err != nil {
		return err
	}
	janitor.Start()

	runner := tasks.NewRunner(tracker, cfg.Workers, cfg.QueueSize)

	srv := server.NewServer(server.Deps{
		Service:  svc,
		Runner:   runner,
		Tracker:  tracker,
		Uploads:  uploads,
		Defaults: cfg.Conn,
	})

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ServerAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown: %v", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Transfers still running at shutdown were cancelled: %v", err)
	}
	janitor.Stop(shutdownCtx)

	logger.Success("Server stopped")
	return nil
}
