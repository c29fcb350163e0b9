package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jemaat/portal/config"
)

func testAppConfig() *config.AppConfig {
	cfg := &config.AppConfig{
		Auth:    config.AuthConfig{Mode: config.AuthModeMock},
		Backend: validBackendConfig(),
	}
	cfg.Auth.Sanitize()
	cfg.Cache.Sanitize()
	return cfg
}

func TestNewServices_InMemory(t *testing.T) {
	svcs, err := NewServices(&ServiceDeps{Config: testAppConfig(), Logger: discardLogger()})
	require.NoError(t, err)

	assert.NotNil(t, svcs.Sessions)
	assert.NotNil(t, svcs.Content)
	assert.NotNil(t, svcs.Dashboards)
	assert.NotNil(t, svcs.Limiter)
	assert.Nil(t, svcs.Audit)
	assert.Nil(t, svcs.Observability.MetricsSink)
	assert.Nil(t, svcs.Observability.sink())
	assert.Empty(t, svcs.HealthChecks)
}

func TestNewServices_RequiresConfig(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)
	_, err = NewServices(&ServiceDeps{})
	require.Error(t, err)
}

func TestBuildRouterServices_ServesHealthz(t *testing.T) {
	cfg := testAppConfig()
	cfg.HTTP.BaseURL = "https://gereja.example.org"
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)

	rs := buildRouterServices(cfg, svcs, discardLogger())
	assert.True(t, rs.ClientCookie.Secure)
	assert.True(t, rs.CSRF.Secure)
	assert.Equal(t, cfg.Auth.ClientCookieName, rs.ClientCookie.CookieName)
	assert.Nil(t, rs.Audit)
}

func TestShutdownHTTPServer(t *testing.T) {
	require.NoError(t, ShutdownHTTPServer(ShutdownConfig{}))

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	require.NoError(t, ShutdownHTTPServer(ShutdownConfig{Server: srv.Config, Timeout: time.Second, Logger: discardLogger()}))
}

func TestRunUnits_FailureStopsOthers(t *testing.T) {
	boom := errors.New("boom")
	stopped := make(chan struct{})

	err := runUnits(context.Background(), discardLogger(), []unit{
		{name: "reaper", run: func(context.Context) error { return boom }},
		{name: "http", run: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}},
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reaper: boom")

	select {
	case <-stopped:
	default:
		t.Fatal("sibling unit was not cancelled")
	}
}

func TestRunUnits_ReturnsNilOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := runUnits(ctx, discardLogger(), []unit{
		{name: "reaper", run: func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}},
	})
	require.NoError(t, err)
}

func TestBuildUnits(t *testing.T) {
	cfg := testAppConfig()
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	orch := &ServiceOrchestrationConfig{Config: cfg, Services: svcs, Logger: discardLogger()}

	names := func(units []unit) []string {
		out := make([]string, 0, len(units))
		for _, u := range units {
			out = append(out, u.name)
		}
		return out
	}

	assert.Equal(t, []string{"http", "reaper"}, names(buildUnits(orch, map[config.ServiceMode]bool{
		config.ServiceModeHTTP:   true,
		config.ServiceModeReaper: true,
	})))
	assert.Equal(t, []string{"reaper"}, names(buildUnits(orch, map[config.ServiceMode]bool{
		config.ServiceModeReaper: true,
	})))
	assert.Equal(t, []string{"http", sweeperUnit}, names(buildUnits(orch, map[config.ServiceMode]bool{
		config.ServiceModeHTTP: true,
	})))
	assert.Empty(t, buildUnits(orch, map[config.ServiceMode]bool{}))
}

func TestReaperConfig_SweepsOnlyNextToHTTP(t *testing.T) {
	cfg := testAppConfig()
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	orch := &ServiceOrchestrationConfig{Config: cfg, Services: svcs, Logger: discardLogger()}

	alone := reaperConfig(orch, false)
	assert.Nil(t, alone.Sessions)
	assert.Nil(t, alone.Limiter)

	shared := reaperConfig(orch, true)
	assert.NotNil(t, shared.Sessions)
	assert.NotNil(t, shared.Limiter)
	assert.Equal(t, cfg.Auth.IdleTimeout, shared.SessionIdle)
}

type countingSweeper struct{ calls atomic.Int32 }

func (c *countingSweeper) Sweep(time.Duration) int {
	c.calls.Add(1)
	return 0
}

func TestSweepConfig_HTTPWithoutReaper(t *testing.T) {
	cfg := testAppConfig()
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	orch := &ServiceOrchestrationConfig{Config: cfg, Services: svcs, Logger: discardLogger()}

	rc := sweepConfig(orch)
	assert.Nil(t, rc.DB, "access log purge stays with the reaper")
	assert.Zero(t, rc.Config.AuditRetention)
	assert.NotNil(t, rc.Sessions)
	assert.NotNil(t, rc.Limiter)
	assert.Equal(t, cfg.Auth.IdleTimeout, rc.SessionIdle)
	assert.Equal(t, defaultSweepInterval, rc.Config.Interval)

	cfg.Reaper.Interval = 10 * time.Millisecond
	rc = sweepConfig(orch)
	sessions, limiter := &countingSweeper{}, &countingSweeper{}
	rc.Sessions, rc.Limiter = sessions, limiter

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunReaper(ctx, rc) }()

	require.Eventually(t, func() bool {
		return sessions.calls.Load() >= 2 && limiter.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond, "sweeps repeat on every tick")
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestServeHTTP_ShutsDownOnCancel(t *testing.T) {
	cfg := testAppConfig()
	cfg.HTTP.Addr = "127.0.0.1:0"
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	srv := newHTTPServer(cfg, svcs, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, srv, time.Second, discardLogger()) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeHTTP_ReportsListenError(t *testing.T) {
	cfg := testAppConfig()
	cfg.HTTP.Addr = "256.0.0.1:bad"
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	srv := newHTTPServer(cfg, svcs, discardLogger())

	err = serveHTTP(context.Background(), srv, time.Second, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
}

func TestRunReaper_NothingToClean(t *testing.T) {
	err := RunReaper(context.Background(), ReaperConfig{
		Config: config.ReaperConfig{Interval: time.Minute},
		Logger: discardLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create reaper runner")
}
