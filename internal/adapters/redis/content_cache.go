package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jemaat/portal/internal/ports"
)

// DefaultContentPrefix namespaces cached public listings.
const DefaultContentPrefix = "portal:content:"

// ContentCache stores public listings keyed by resource generation.
// Invalidate bumps the generation instead of scanning keys; stale entries expire on their own.
type ContentCache struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.ContentCache = (*ContentCache)(nil)

// NewContentCache creates a content cache. An empty prefix uses DefaultContentPrefix.
func NewContentCache(client redis.UniversalClient, prefix string) *ContentCache {
	if prefix == "" {
		prefix = DefaultContentPrefix
	}
	return &ContentCache{client: client, prefix: prefix}
}

func (c *ContentCache) genKey(resource string) string {
	return c.prefix + "gen:" + resource
}

func (c *ContentCache) generation(ctx context.Context, resource string) (int64, error) {
	v, err := c.client.Get(ctx, c.genKey(resource)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return v, nil
}

func (c *ContentCache) entryKey(resource string, gen int64, key string) string {
	return c.prefix + resource + ":" + strconv.FormatInt(gen, 10) + ":" + key
}

// Get returns the cached value for key under the resource's current generation.
func (c *ContentCache) Get(ctx context.Context, resource, key string) ([]byte, bool, error) {
	if resource == "" || key == "" {
		return nil, false, errors.New("resource and key cannot be empty")
	}
	gen, err := c.generation(ctx, resource)
	if err != nil {
		return nil, false, err
	}

	b, err := c.client.Get(ctx, c.entryKey(resource, gen, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

// Set stores value for key under the resource's current generation.
func (c *ContentCache) Set(ctx context.Context, resource, key string, value []byte, ttl time.Duration) error {
	if resource == "" || key == "" {
		return errors.New("resource and key cannot be empty")
	}
	gen, err := c.generation(ctx, resource)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.entryKey(resource, gen, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate makes every entry of resource unreachable.
func (c *ContentCache) Invalidate(ctx context.Context, resource string) error {
	if resource == "" {
		return errors.New("resource cannot be empty")
	}
	if err := c.client.Incr(ctx, c.genKey(resource)).Err(); err != nil {
		return fmt.Errorf("redis incr generation: %w", err)
	}
	return nil
}
