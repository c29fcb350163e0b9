package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jemaat/portal/config"
	"github.com/jemaat/portal/internal/adapters/churchapi"
	"github.com/jemaat/portal/internal/adapters/devauth"
	"github.com/jemaat/portal/internal/adapters/memory"
	redisadapter "github.com/jemaat/portal/internal/adapters/redis"
	"github.com/jemaat/portal/internal/ports"
)

// BackendConfig contains configuration for the church API backend.
type BackendConfig struct {
	Auth    config.AuthConfig
	Backend config.BackendConfig
	Logger  *slog.Logger
}

// BuildBackend creates the backend selected by AUTH_MODE.
//
//nolint:ireturn // the mode picks between the HTTP client and the in-process dev backend.
func BuildBackend(cfg BackendConfig) (ports.Backend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevBackend(cfg.Auth.DevAuth, logger)
	case config.AuthModeRemote, "":
		client, err := churchapi.New(churchapi.Options{
			Config: churchapi.Config{
				BaseURL:     cfg.Backend.BaseURL,
				LoginPath:   cfg.Backend.LoginPath,
				MePath:      cfg.Backend.MePath,
				LogoutPath:  cfg.Backend.LogoutPath,
				Timeout:     cfg.Backend.Timeout,
				TokenExpr:   cfg.Backend.TokenExpr,
				ProfileExpr: cfg.Backend.ProfileExpr,
				RoleExpr:    cfg.Backend.RoleExpr,
				MessageExpr: cfg.Backend.MessageExpr,
			},
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create church api client: %w", err)
		}
		logger.Info("using church api backend", "base_url", cfg.Backend.BaseURL)
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func buildDevBackend(cfg config.DevAuthConfig, logger *slog.Logger) (*devauth.Provider, error) {
	var (
		users []devauth.User
		err   error
	)
	if cfg.UsersFile != "" {
		users, err = devauth.LoadUsersFile(cfg.UsersFile)
	} else {
		users, err = devauth.DefaultUsers()
	}
	if err != nil {
		return nil, fmt.Errorf("load dev users: %w", err)
	}

	prov, err := devauth.NewProvider(devauth.Config{Users: users})
	if err != nil {
		return nil, fmt.Errorf("create dev backend: %w", err)
	}
	logger.Warn("using in-process dev backend; do not run this in production", "users", len(users))
	return prov, nil
}

// StoreConfig contains configuration for the credential store and content cache.
type StoreConfig struct {
	Auth        config.AuthConfig
	Cache       config.CacheConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// Stores groups the persistence adapters behind the session and content services.
type Stores struct {
	Credentials ports.CredentialStore
	Cache       ports.ContentCache
	CacheTTL    time.Duration
}

// BuildStores picks Redis-backed stores when a client is available and
// in-memory ones otherwise. In-memory credentials do not survive a restart.
func BuildStores(cfg StoreConfig) Stores {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stores := Stores{CacheTTL: cfg.Cache.ContentTTL}

	if cfg.RedisClient == nil {
		logger.Warn("redis disabled; credentials and cache are kept in memory")
		stores.Credentials = memory.NewCredentialStore()
		stores.Cache = memory.NewContentCache()
		return stores
	}

	sealer := CreateSealer(cfg.Auth.CredentialKey, cfg.Auth.CredentialRetiredKeys, logger)
	stores.Credentials = redisadapter.NewCredentialStore(cfg.RedisClient, cfg.Auth.CredentialPrefix).WithSealer(sealer)
	stores.Cache = redisadapter.NewContentCache(cfg.RedisClient, cfg.Cache.KeyPrefix)
	return stores
}
