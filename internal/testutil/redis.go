package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates are tried in order when REDIS_ADDR is unset.
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"}

// SetupTestRedis returns a client on an otherwise unused logical database,
// flushed and closed on cleanup. The test is skipped when no server answers
// unless TEST_REQUIRE_REDIS or TEST_REQUIRE_INFRA is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := findRedis()
	if !ok {
		if envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") {
			t.Fatal("redis not available for testing")
		}
		t.Skip("redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("flush test redis at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func findRedis() (string, bool) {
	candidates := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	for _, addr := range candidates {
		if pingRedis(addr) {
			return addr, true
		}
	}
	return "", false
}

func pingRedis(addr string) bool {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = c.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.Ping(ctx).Err() == nil
}

// reserveRedisDB claims a logical database in 1..15 through a SETNX lease in
// DB 0 so packages running in parallel do not flush each other. TEST_REDIS_DB
// overrides the choice.
func reserveRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	lease := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		key := fmt.Sprintf("portal:testutil:db:%d", i)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		ok, err := meta.SetNX(ctx, key, lease, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			defer func() { _ = meta.Close() }()
			relCtx, relCancel := context.WithTimeout(context.Background(), time.Second)
			defer relCancel()
			meta.Del(relCtx, key)
		})
		return i
	}
	_ = meta.Close()
	t.Logf("no free redis db at %s, sharing db 1", addr)
	return 1
}
