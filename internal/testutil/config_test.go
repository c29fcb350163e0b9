package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jemaat/portal/internal/domain/model"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to the local test database", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}
		cfg := DefaultTestDBConfig()
		assert.Equal(t, TestDBConfig{
			Host:     "localhost",
			Port:     "55432",
			User:     "portal",
			Password: "portal",
			DBName:   "portal_test",
		}, cfg)
	})

	t.Run("respects environment overrides", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")
		t.Setenv("TEST_DB_USER", "ci")
		t.Setenv("TEST_DB_PASSWORD", "ci-pass")
		t.Setenv("TEST_DB_NAME", "ci_db")

		cfg := DefaultTestDBConfig()
		assert.Equal(t, "postgres", cfg.Host)
		assert.Equal(t, "5432", cfg.Port)
		assert.Equal(t, "ci", cfg.User)
		assert.Equal(t, "ci-pass", cfg.Password)
		assert.Equal(t, "ci_db", cfg.DBName)
	})
}

func TestTestDBConfig_DSN(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "portal_test"}

	assert.Equal(t, "postgres://u:p%40ss@db:5432/portal_test?sslmode=disable", cfg.DSN(""))
	assert.Contains(t, cfg.DSN("t_ab12,public"), "search_path=t_ab12%2Cpublic")
}

func TestAccessEventBuilder(t *testing.T) {
	at := TestTime()
	ev := NewAccessEvent().
		WithKind(model.AccessLogout).
		WithClient("c-1").
		WithUser("7", "budi@example.com", "admin").
		At(at.Add(time.Hour)).
		Build()

	assert.Equal(t, model.AccessLogout, ev.Kind)
	assert.Equal(t, "c-1", ev.ClientID)
	assert.Equal(t, "7", ev.UserID)
	assert.Equal(t, "admin", ev.Role)
	assert.Equal(t, at.Add(time.Hour), ev.CreatedAt)
	assert.NotEmpty(t, ev.ID)
}
