// Package cli wires the pgsyncd binary's Cobra command tree: serve starts
// the HTTP surface, scheduler, and metrics listener in one process; migrate
// applies or tears down the metadata-store schema.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pgsynclabs/syncengine/config"
	"github.com/pgsynclabs/syncengine/internal/cryptox"
	"github.com/pgsynclabs/syncengine/internal/datatransfer"
	"github.com/pgsynclabs/syncengine/internal/health"
	"github.com/pgsynclabs/syncengine/internal/infrastructure/postgres"
	ctxlog "github.com/pgsynclabs/syncengine/internal/log"
	"github.com/pgsynclabs/syncengine/internal/metrics"
	"github.com/pgsynclabs/syncengine/internal/orchestrator"
	"github.com/pgsynclabs/syncengine/internal/progressbus"
	"github.com/pgsynclabs/syncengine/internal/repository"
	"github.com/pgsynclabs/syncengine/internal/scheduler"
	"github.com/pgsynclabs/syncengine/internal/statuscontrol"
	"github.com/pgsynclabs/syncengine/internal/supervisor"
)

// App holds every wired component the serve command needs. It is assembled
// once at startup and torn down on shutdown.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	Jobs      repository.JobRepository
	Scheduler *scheduler.Scheduler
	Supervisor *supervisor.Supervisor
	Bus       *progressbus.Bus
	Status    *statuscontrol.Controller
	Checker   *health.Checker
}

// WireApp connects to the metadata store and assembles every domain
// component. The caller is responsible for closing the returned App's pool.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := newLogger(cfg.AppDebug, cfg.SlogLevel())

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect metadata store: %w", err)
	}

	cipher, err := cryptox.New(cfg.EncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	connRepo := postgres.NewConnectionRepository(pool)
	jobRepo := postgres.NewJobRepository(pool)
	tableRepo := postgres.NewTargetTableRepository(pool)
	runLogRepo := postgres.NewRunLogRepository(pool)
	runStatusRepo := postgres.NewRunStatusRepository(pool)
	snapshotRepo := postgres.NewSchedulerSnapshotRepository(pool)

	bus := progressbus.New(logger)
	status := statuscontrol.New(runStatusRepo)
	resolver := postgres.NewConnectionResolver(cipher)

	transferCfg := datatransfer.Config{
		InsertBatchSize:        cfg.InsertBatchSize,
		CopyBatchSize:          cfg.CopyBatchSize,
		CopySelectorThreshold:  int64(cfg.CopySelectorThreshold),
		CopyTimeout:            time.Duration(cfg.CopyTimeoutSec) * time.Second,
		ProgressUpdateInterval: 10,
	}

	orch := orchestrator.New(tableRepo, runLogRepo, connRepo, status, bus, resolver, orchestrator.Config{Transfer: transferCfg}, logger)
	super := supervisor.New(jobRepo, orch, logger)

	sched := scheduler.New(jobRepo, snapshotRepo, super, scheduler.Config{
		MaxWorkers:       cfg.MaxWorkers,
		DispatchInterval: time.Duration(cfg.DispatchIntervalSec) * time.Second,
		DefaultTimezone:  cfg.SchedulerTimezone,
	}, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Pool:       pool,
		Jobs:       jobRepo,
		Scheduler:  sched,
		Supervisor: super,
		Bus:        bus,
		Status:     status,
		Checker:    checker,
	}, nil
}

func newLogger(debug bool, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if debug {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
