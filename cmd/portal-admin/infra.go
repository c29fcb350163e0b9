package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jemaat/portal/internal/bootstrap"
)

var (
	errDBDisabled    = errors.New("postgres is disabled (DB_ENABLED=false); the access log lives there")
	errRedisDisabled = errors.New("redis is disabled (REDIS_ENABLED=false); credentials are only held in memory by the server")
)

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	if !cmdCtx.Config.Postgres.Enabled {
		return errDBDisabled
	}

	ctx, cancel := signalContext(cmdCtx.Ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func withRedis(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, redis.UniversalClient) error,
) error {
	if !cmdCtx.Config.Redis.Enabled {
		return errRedisDisabled
	}

	ctx, cancel := signalContext(cmdCtx.Ctx, timeout)
	defer cancel()

	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	return f(ctx, client)
}

// confirmAction asks for a y/N answer on cmdCtx.In unless yes is set.
func confirmAction(cmdCtx *commandContext, yes bool, prompt string) error {
	if yes {
		return nil
	}
	if err := writef(cmdCtx.Out, "%s\n", prompt); err != nil {
		return fmt.Errorf("print confirmation message: %w", err)
	}
	if err := write(cmdCtx.Out, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && resp == "" {
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
