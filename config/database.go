package config

import "time"

// DBConfig contains PostgreSQL configuration for the access audit trail.
type DBConfig struct {
	// Enabled turns auditing on. Without Postgres audit events are dropped.
	Enabled  bool   `env:"ENABLED"                 envDefault:"false"`
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"portal"`
	Password string `env:"PASSWORD"                envDefault:"portal"`
	Name     string `env:"NAME"                    envDefault:"portal"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	// Enabled selects Redis for credentials and caching; otherwise in-memory stores are used.
	Enabled            bool     `env:"ENABLED"              envDefault:"true"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig controls caching of public content listings.
type CacheConfig struct {
	// ContentTTL is the TTL for cached public listings. Zero disables caching.
	ContentTTL time.Duration `env:"CACHE_CONTENT_TTL" envDefault:"5m"`
	// KeyPrefix prefixes cache keys in Redis.
	KeyPrefix string `env:"CACHE_KEY_PREFIX" envDefault:"portal:content:"`
}

// Sanitize clamps negative TTLs to zero.
func (c *CacheConfig) Sanitize() {
	if c.ContentTTL < 0 {
		c.ContentTTL = 0
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "portal:content:"
	}
}
