// Command portal serves the church admin portal and runs its cleanup loop.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/jemaat/portal/config"
	"github.com/jemaat/portal/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "portal exited", "error", err)
		os.Exit(1) //nolint:forbidigo // non-zero exit on fatal errors
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	bootstrap.ApplyLogLevel(cfg.Observability.Logging)

	logger.InfoContext(ctx, "starting church admin portal",
		"auth_mode", cfg.Auth.Mode,
		"backend", cfg.Backend.BaseURL,
		"audit", cfg.Postgres.Enabled,
		"redis", cfg.Redis.Enabled,
		"enabled_services", bootstrap.GetEnabledServices(&cfg))

	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	inf, err := connect(&cfg, logger)
	if err != nil {
		return err
	}
	defer inf.close(ctx, logger)

	if err = migrateOnStart(ctx, &cfg, inf.db, logger); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          inf.db,
		RedisClient: inf.redis,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		DB:       inf.db,
		Logger:   logger,
	})
}

// infra holds the optional backing stores. Either field is nil when its
// store is disabled.
type infra struct {
	db    *sql.DB
	redis redis.UniversalClient
}

func connect(cfg *config.AppConfig, logger *slog.Logger) (infra, error) {
	var inf infra
	dbCfg := bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	if cfg.Postgres.Enabled {
		db, err := bootstrap.ConnectDB(dbCfg)
		if err != nil {
			return inf, fmt.Errorf("connect db: %w", err)
		}
		inf.db = db
	}

	if cfg.Redis.Enabled {
		client, err := bootstrap.ConnectRedis(dbCfg)
		if err != nil {
			err = fmt.Errorf("connect redis: %w", err)
			if inf.db != nil {
				if cerr := inf.db.Close(); cerr != nil {
					err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
				}
			}
			return infra{}, err
		}
		inf.redis = client
	}
	return inf, nil
}

func (i infra) close(ctx context.Context, logger *slog.Logger) {
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			logger.ErrorContext(ctx, "close database failed", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", err)
		}
	}
}

func migrateOnStart(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	if !cfg.Postgres.RunMigrationsOnStart {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		return nil
	}
	return bootstrap.RunMigrations(ctx, db, logger)
}
