package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/jemaat/portal/config"
	"github.com/jemaat/portal/internal/data"
)

const (
	applicationName = "jemaat-portal"
	connectTimeout  = 5 * time.Second
)

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// ConnectDB opens the Postgres pool that stores the access log and verifies
// it answers.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	connCfg, err := pgxConfig(cfg.DBConfig)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if pingErr := db.PingContext(ctx); pingErr != nil {
		return nil, errors.Join(fmt.Errorf("ping database: %w", pingErr), closeWrap("database", db.Close()))
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", connCfg.Host,
			"port", connCfg.Port,
			"database", connCfg.Database,
		)
	}
	return db, nil
}

// pgxConfig builds a connection config in keyword/value form so passwords with
// URL metacharacters need no escaping.
func pgxConfig(c config.DBConfig) (*pgx.ConnConfig, error) {
	kv := []string{
		"host=" + quoteConnValue(c.Host),
		"port=" + strconv.Itoa(c.Port),
		"user=" + quoteConnValue(c.User),
		"password=" + quoteConnValue(c.Password),
		"dbname=" + quoteConnValue(c.Name),
		"sslmode=" + quoteConnValue(c.SSLMode),
		"connect_timeout=" + strconv.Itoa(int(connectTimeout/time.Second)),
		"application_name=" + applicationName,
	}
	connCfg, err := pgx.ParseConfig(strings.Join(kv, " "))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	return connCfg, nil
}

func quoteConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// ConnectRedis connects to a single node, a sentinel group or a cluster
// depending on the config, and verifies the connection with a PING.
//
//nolint:ireturn // callers only need the UniversalClient surface.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, desc, err := redisOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", pingErr), closeWrap("redis client", client.Close()))
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", desc)
	}
	return client, nil
}

// redisOptions maps the config onto UniversalOptions. The returned
// description never contains credentials.
func redisOptions(c config.RedisConfig) (*redis.UniversalOptions, string, error) {
	opts := &redis.UniversalOptions{
		Password:   c.Password,
		DB:         c.DB,
		ClientName: applicationName,
	}

	switch {
	case c.UseCluster:
		opts.Addrs = trimAddrs(c.ClusterNodes)
		opts.IsClusterMode = true
		opts.DB = 0
		if len(opts.Addrs) == 0 {
			if err := applyRedisURI(opts, c.URI); err != nil {
				return nil, "", err
			}
		}
		if len(opts.Addrs) == 0 {
			return nil, "", errors.New("redis cluster configuration requires at least one address")
		}
		return opts, "cluster:" + strings.Join(opts.Addrs, ","), nil

	case c.UseSentinel:
		opts.Addrs = trimAddrs(c.SentinelNodes)
		if len(opts.Addrs) == 0 {
			return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		if c.SentinelMasterName == "" {
			return nil, "", errors.New("redis sentinel configuration requires a master name")
		}
		opts.MasterName = c.SentinelMasterName
		opts.SentinelPassword = c.SentinelPassword
		return opts, "sentinel:" + c.SentinelMasterName, nil

	default:
		if err := applyRedisURI(opts, c.URI); err != nil {
			return nil, "", err
		}
		if len(opts.Addrs) == 0 {
			return nil, "", errors.New("redis direct configuration requires a URI")
		}
		return opts, opts.Addrs[0], nil
	}
}

// applyRedisURI accepts either host:port or a redis:// / rediss:// URL. URL
// credentials and TLS settings override the plain config.
func applyRedisURI(opts *redis.UniversalOptions, raw string) error {
	uri := strings.TrimSpace(raw)
	if uri == "" {
		return nil
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		opts.Addrs = []string{uri}
		return nil
	}

	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	if !opts.IsClusterMode {
		opts.DB = parsed.DB
	}
	opts.TLSConfig = parsed.TLSConfig
	return nil
}

func trimAddrs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func closeWrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", what, err)
}

// RunMigrations applies pending schema migrations and logs how many ran.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	applied, err := data.RunMigrations(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.InfoContext(ctx, "database migrations completed", "applied", len(applied))
	return nil
}
