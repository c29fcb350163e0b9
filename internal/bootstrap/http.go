package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jemaat/portal/config"
	httpx "github.com/jemaat/portal/internal/http"
)

// newHTTPServer builds the portal's server without starting it.
func newHTTPServer(appCfg *config.AppConfig, svcs ServiceContainer, logger *slog.Logger) *http.Server {
	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           httpx.NewRouter(buildRouterServices(appCfg, svcs, logger)),
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// serveHTTP runs srv until ctx ends, then shuts it down within timeout. A
// listener failure is returned as is.
func serveHTTP(ctx context.Context, srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return ShutdownHTTPServer(ShutdownConfig{Server: srv, Timeout: timeout, Logger: logger})
	}
}

func buildRouterServices(appCfg *config.AppConfig, svcs ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	secure := appCfg.HTTP.SecureCookies()
	services := httpx.RouterServices{
		Content:      svcs.Content,
		Dashboards:   svcs.Dashboards,
		Limiter:      svcs.Limiter,
		Metrics:      svcs.Observability.sink(),
		HealthChecks: svcs.HealthChecks,
		ClientCookie: httpx.ClientSessionConfig{
			CookieName:  appCfg.Auth.ClientCookieName,
			MaxAge:      appCfg.Auth.ClientCookieMaxAge,
			Domain:      appCfg.HTTP.CookieDomain,
			Secure:      secure,
			HydrateWait: appCfg.Auth.HydrateWait,
		},
		CSRF: httpx.CSRFConfig{
			CookieDomain: appCfg.HTTP.CookieDomain,
			Secure:       secure,
		},
		IsDev:  appCfg.IsDev,
		Logger: logger,
	}
	// Typed nils must not reach the interface fields.
	if svcs.Sessions != nil {
		services.Sessions = svcs.Sessions
	}
	if svcs.Audit != nil {
		services.Audit = svcs.Audit
	}
	return services
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
