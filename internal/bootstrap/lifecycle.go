package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jemaat/portal/config"
)

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// unit is one long-running part of the process. run must return once ctx is
// done.
type unit struct {
	name string
	run  func(ctx context.Context) error
}

// RunServicesWithShutdown runs every enabled service until SIGINT or SIGTERM
// arrives or one of them fails. The first failure stops the others and is
// returned.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config with AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		cfg.Logger.Info("shutting down services")
	}()

	return runUnits(ctx, cfg.Logger, buildUnits(cfg, enabled))
}

func runUnits(ctx context.Context, logger *slog.Logger, units []unit) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range units {
		g.Go(func() error {
			logger.InfoContext(gctx, "service started", "service", u.name)
			err := u.run(gctx)
			if err != nil {
				logger.ErrorContext(gctx, "service failed", "service", u.name, "error", err)
				return fmt.Errorf("%s: %w", u.name, err)
			}
			logger.InfoContext(gctx, "service stopped", "service", u.name)
			return nil
		})
	}
	return g.Wait()
}

func buildUnits(cfg *ServiceOrchestrationConfig, enabled map[config.ServiceMode]bool) []unit {
	var units []unit
	if enabled[config.ServiceModeHTTP] {
		srv := newHTTPServer(cfg.Config, cfg.Services, cfg.Logger)
		units = append(units, unit{
			name: string(config.ServiceModeHTTP),
			run: func(ctx context.Context) error {
				return serveHTTP(ctx, srv, cfg.Config.HTTP.ShutdownTimeout, cfg.Logger)
			},
		})
	}
	if enabled[config.ServiceModeHTTP] && !enabled[config.ServiceModeReaper] {
		rc := sweepConfig(cfg)
		if rc.Sessions != nil || rc.Limiter != nil {
			units = append(units, unit{
				name: sweeperUnit,
				run:  func(ctx context.Context) error { return RunReaper(ctx, rc) },
			})
		}
	}
	if enabled[config.ServiceModeReaper] {
		rc := reaperConfig(cfg, enabled[config.ServiceModeHTTP])
		units = append(units, unit{
			name: string(config.ServiceModeReaper),
			run:  func(ctx context.Context) error { return RunReaper(ctx, rc) },
		})
	}
	return units
}

// sweeperUnit keeps the in-process session registry and login limiter bounded
// when SERVICES runs http without the reaper.
const sweeperUnit = "sweeper"

const defaultSweepInterval = time.Minute

// sweepConfig is the in-process half of the reaper: idle sessions and limiter
// entries only. The access log purge stays with the reaper service.
func sweepConfig(cfg *ServiceOrchestrationConfig) ReaperConfig {
	rc := reaperConfig(cfg, true)
	rc.DB = nil
	rc.Config.AuditRetention = 0
	if rc.Config.Interval <= 0 {
		rc.Config.Interval = defaultSweepInterval
	}
	return rc
}

// reaperConfig hands the in-process session registry and limiter to the
// reaper only when the HTTP server lives in the same process.
func reaperConfig(cfg *ServiceOrchestrationConfig, withHTTP bool) ReaperConfig {
	svcs := cfg.Services
	rc := ReaperConfig{
		DB:      cfg.DB,
		Logger:  cfg.Logger,
		Config:  cfg.Config.Reaper,
		Metrics: svcs.Observability.sink(),
	}
	if !withHTTP {
		return rc
	}
	rc.SessionIdle = cfg.Config.Auth.IdleTimeout
	if svcs.Sessions != nil {
		rc.Sessions = svcs.Sessions
	}
	if svcs.Limiter != nil {
		rc.Limiter = svcs.Limiter
	}
	return rc
}
