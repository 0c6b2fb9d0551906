package di

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/handlers"
	"github.com/russellmoss/guest-count-check/internal/platform/auth"
	"github.com/russellmoss/guest-count-check/internal/platform/observability"
)

const defaultShutdownTimeout = 10 * time.Second

// Authenticator builds the bearer-token guard. With auth disabled (never in production) every
// request runs as the local identity and no Firebase app is created.
func (c *Container) Authenticator(ctx context.Context) (*auth.Authenticator, error) {
	cfg := c.Config.Auth
	if cfg.Disabled {
		c.Logger.Warn("authentication disabled; requests run as the local identity")
		return auth.NewAuthenticator(nil, auth.WithDisabled(true)), nil
	}
	verifier, err := auth.NewFirebaseVerifier(ctx, c.Config.Firebase, auth.WithRevocationCheck(cfg.CheckRevoked))
	if err != nil {
		return nil, fmt.Errorf("build firebase verifier: %w", err)
	}
	return auth.NewAuthenticator(verifier, auth.WithAllowedEmailDomains(cfg.AllowedEmailDomains...)), nil
}

// Handler assembles the HTTP surface: middleware chain, health endpoints, metrics and the audit routes.
func (c *Container) Handler(authn *auth.Authenticator) http.Handler {
	httpLogger := c.Logger.Named("http")
	expose := c.ExposeErrorDetail()

	orders := handlers.NewOrderHandlers(c.Services.Reports, expose)
	exports := handlers.NewExportHandlers(c.Services.Exports,
		handlers.WithExportRateLimit(c.Config.Export.RateLimitPerMinute),
		handlers.WithExportMetrics(c.Metrics),
		handlers.WithExportErrorDetail(expose),
	)
	connection := handlers.NewConnectionHandlers(c.Services.Connection, expose)
	health := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(c.Build),
		handlers.WithHealthSystemService(c.Services.System),
		handlers.WithHealthErrorDetail(expose),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.TraceMiddleware(c.TraceProjectID()),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithMetricsHandler(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})),
		handlers.WithConnectionHandler(connection.TestConnection),
		handlers.WithAPIRoutes(orders.Routes),
		handlers.WithExportRoutes(exports.Routes),
	}
	if authn != nil {
		opts = append(opts, handlers.WithAuthMiddleware(authn.RequireAuth))
	}
	return handlers.NewRouter(opts...)
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight requests for up to
// the configured shutdown timeout.
func (c *Container) Serve(ctx context.Context, handler http.Handler) error {
	cfg := c.Config.Server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	logger := c.Logger.Named("http").With(zap.String("addr", server.Addr))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("guest count api listening",
			zap.String("version", c.Build.Version),
			zap.String("environment", c.Build.Environment),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received; draining requests")
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
