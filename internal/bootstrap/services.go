package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jemaat/portal/config"
	"github.com/jemaat/portal/internal/data"
	httpx "github.com/jemaat/portal/internal/http"
	"github.com/jemaat/portal/internal/observability/statsd"
	"github.com/jemaat/portal/internal/ports"
	"github.com/jemaat/portal/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Sessions   *service.SessionRegistry
	Content    *service.ContentService
	Dashboards *service.DashboardService
	// Audit is nil when Postgres is disabled.
	Audit   *data.AuditRepo
	Limiter *httpx.LoginLimiter

	HealthChecks  map[string]httpx.HealthCheck
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// sink returns the metrics sink as an interface, nil when metrics are off.
//
//nolint:ireturn // a typed nil *statsd.Client must not leak into the Sink interface.
func (o ObservabilityContainer) sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	// Backend overrides the one selected by AUTH_MODE.
	Backend ports.Backend
	Logger  *slog.Logger
}

// buildObservability configures the StatsD sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{MetricsSink: metricsSink, MetricsConfig: cfg.Metrics}
}

// NewServices wires the session, content and dashboard services onto the
// chosen backend and stores.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	backend := deps.Backend
	if backend == nil {
		var err error
		backend, err = BuildBackend(BackendConfig{Auth: cfg.Auth, Backend: cfg.Backend, Logger: logger})
		if err != nil {
			return ServiceContainer{}, err
		}
	}

	observability := buildObservability(logger, cfg.Observability)
	metricsSink := observability.sink()

	stores := BuildStores(StoreConfig{
		Auth:        cfg.Auth,
		Cache:       cfg.Cache,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})

	var audit *data.AuditRepo
	var auditSink ports.AuditSink
	if deps.DB != nil {
		audit = data.NewAuditRepo(deps.DB)
		auditSink = audit
	}

	sessions := service.NewSessionRegistry(service.SessionOptions{
		Backend:       backend,
		Credentials:   stores.Credentials,
		Audit:         auditSink,
		Metrics:       metricsSink,
		Logger:        logger,
		CredentialTTL: cfg.Auth.CredentialTTL,
		Timeout:       cfg.Backend.Timeout,
	})

	content := service.NewContentService(service.ContentServiceOptions{
		Backend:    backend,
		Cache:      stores.Cache,
		CacheTTL:   stores.CacheTTL,
		ExportPath: cfg.Backend.ExportPath,
		Metrics:    metricsSink,
		Logger:     logger,
	})

	return ServiceContainer{
		Sessions:      sessions,
		Content:       content,
		Dashboards:    service.NewDashboardService(service.DashboardServiceOptions{Content: content, Logger: logger}),
		Audit:         audit,
		Limiter:       httpx.NewLoginLimiter(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst),
		HealthChecks:  buildHealthChecks(deps.DB, deps.RedisClient),
		Observability: observability,
	}, nil
}

// buildHealthChecks pings the infrastructure that is actually configured.
func buildHealthChecks(db *sql.DB, rdb redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := map[string]httpx.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
