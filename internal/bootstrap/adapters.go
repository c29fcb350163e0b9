package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jemaat/portal/config"
	"github.com/jemaat/portal/internal/adapters/reaper"
	"github.com/jemaat/portal/internal/observability/statsd"
	"github.com/jemaat/portal/internal/service"
)

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink

	// Sessions and Limiter are set only when the HTTP server shares the process.
	Sessions    service.IdleSweeper
	Limiter     service.IdleSweeper
	SessionIdle time.Duration
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:          cfg.DB,
		Config:      cfg.Config,
		Logger:      cfg.Logger,
		Sessions:    cfg.Sessions,
		Limiter:     cfg.Limiter,
		SessionIdle: cfg.SessionIdle,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
