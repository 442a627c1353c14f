package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgsynclabs/syncengine/config"
	"github.com/pgsynclabs/syncengine/internal/httpapi"
	"github.com/pgsynclabs/syncengine/internal/httpapi/handler"
	"github.com/pgsynclabs/syncengine/internal/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP surface, scheduler, and metrics listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parentCtx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Pool.Close()

	if err := app.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	jobHandler := handler.NewJobHandler(app.Jobs, app.Supervisor, app.Logger)
	statusHandler := handler.NewStatusHandler(app.Status, app.Logger)
	progressHandler := handler.NewProgressHandler(app.Bus, time.Duration(cfg.ProgressHeartbeatSec)*time.Second, app.Logger)
	healthHandler := handler.NewHealthHandler(app.Checker, app.Scheduler)

	router := httpapi.NewRouter(app.Logger, jobHandler, statusHandler, progressHandler, healthHandler, []byte(cfg.AuthTokenSecret))

	srv := &http.Server{
		Addr:    cfg.AppHost + ":" + cfg.AppPort,
		Handler: router,
	}
	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		app.Logger.Info("http server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("http server", "error", err)
		}
	}()

	go func() {
		app.Logger.Info("metrics server started", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	app.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app.Scheduler.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("http server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("metrics server shutdown", "error", err)
	}

	return nil
}
