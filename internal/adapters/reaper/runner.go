// Package reaper provides adapters for running the cleanup loop.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jemaat/portal/config"
	"github.com/jemaat/portal/internal/data"
	"github.com/jemaat/portal/internal/observability/statsd"
	"github.com/jemaat/portal/internal/service"
)

// Runner constructs the reaper service and runs its loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	// DB backs the access log; nil skips the purge step.
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Sessions and Limiter are only set when the HTTP server runs in this process.
	Sessions    service.IdleSweeper
	Limiter     service.IdleSweeper
	SessionIdle time.Duration

	// Optional dependency injection for testing/decoupling
	Audit   service.AuditPurger
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Sessions:       opts.Sessions,
		Limiter:        opts.Limiter,
		Audit:          opts.Audit,
		Interval:       opts.Config.Interval,
		SessionIdle:    opts.SessionIdle,
		AuditRetention: opts.Config.AuditRetention,
		Logger:         opts.Logger,
		Metrics:        opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Audit == nil && opts.DB != nil {
		opts.Audit = data.NewAuditRepo(opts.DB)
	}
	if opts.Audit == nil && opts.Sessions == nil && opts.Limiter == nil {
		return errors.New("reaper needs a database or an in-process session registry")
	}
	return nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
