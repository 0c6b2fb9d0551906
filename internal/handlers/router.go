package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/russellmoss/guest-count-check/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	middlewares []func(http.Handler) http.Handler
	auth        func(http.Handler) http.Handler
	health      *HealthHandlers
	metrics     http.Handler

	api        RouteRegistrar
	export     RouteRegistrar
	connection http.HandlerFunc
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const errorNotFoundCode = "route_not_found"

// NewRouter constructs the chi router with shared middleware and the service's route groups.
// There is deliberately no request timeout middleware: a full paginated fetch may take minutes
// and is bounded by the server write timeout instead.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}
	if cfg.connection != nil {
		r.Get("/test-connection", cfg.connection)
	}

	authenticated := func(reg RouteRegistrar) RouteRegistrar {
		return func(group chi.Router) {
			if cfg.auth != nil {
				group.Use(cfg.auth)
			}
			reg(group)
		}
	}
	if cfg.api != nil {
		r.Route("/api", authenticated(cfg.api))
	}
	if cfg.export != nil {
		r.Group(authenticated(cfg.export))
	}

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithAuthMiddleware guards the /api group and the export route.
func WithAuthMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.auth = mw
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithMetricsHandler exposes h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.metrics = h
	}
}

// WithAPIRoutes configures the registrar mounted under /api.
func WithAPIRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.api = reg
	}
}

// WithExportRoutes configures the registrar for the spreadsheet download.
func WithExportRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.export = reg
	}
}

// WithConnectionHandler exposes the unauthenticated upstream connectivity check on /test-connection.
func WithConnectionHandler(h http.HandlerFunc) Option {
	return func(cfg *routerConfig) {
		cfg.connection = h
	}
}
