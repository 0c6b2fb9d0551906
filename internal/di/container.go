// Package di assembles the runtime graph shared by the API server and the operator CLI.
package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/commerce"
	"github.com/russellmoss/guest-count-check/internal/export"
	"github.com/russellmoss/guest-count-check/internal/guestcount"
	"github.com/russellmoss/guest-count-check/internal/metrics"
	"github.com/russellmoss/guest-count-check/internal/platform/config"
	pfirestore "github.com/russellmoss/guest-count-check/internal/platform/firestore"
	"github.com/russellmoss/guest-count-check/internal/repositories"
	firestoreRepo "github.com/russellmoss/guest-count-check/internal/repositories/firestore"
	"github.com/russellmoss/guest-count-check/internal/services"
)

const (
	commerceCheckName  = "commerce"
	firestoreCheckName = "firestore"

	// commerceCheckInterval bounds how often readiness checks reach the rate-limited upstream.
	commerceCheckInterval = 30 * time.Second
)

// Services bundles the service-layer contracts that handlers and CLI commands rely upon.
type Services struct {
	Reports    services.ReportService
	Exports    services.ExportService
	Connection services.ConnectionService
	System     services.SystemService
}

// Container owns the upstream client, the optional Firestore provider and the services built
// on them.
type Container struct {
	Config   config.Config
	Logger   *zap.Logger
	Build    services.BuildInfo
	Registry *prometheus.Registry
	Metrics  *metrics.AuditMetrics
	Client   *commerce.Client
	Fetcher  *commerce.Fetcher
	Services Services

	firestore *pfirestore.Provider
}

// Option customises NewContainer.
type Option func(*containerOptions)

type containerOptions struct {
	registry *prometheus.Registry
	clock    func() time.Time
}

// WithRegistry registers collectors on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *containerOptions) {
		o.registry = registry
	}
}

// WithClock injects the clock used for build info and health checks.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. It loads the exclusion set eagerly, so a
// malformed or unreachable exclusion source fails start-up.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, build services.BuildInfo, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	registry := options.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if build.Environment == "" {
		build.Environment = cfg.Security.Environment
	}
	if build.StartedAt.IsZero() {
		build.StartedAt = options.clock().UTC()
	}

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Build:    build,
		Registry: registry,
		Metrics:  metrics.NewAuditMetricsWithRegisterer(registry),
	}

	client, err := commerce.NewClient(commerce.Config{
		BaseURL:   cfg.Commerce.BaseURL,
		TenantID:  cfg.Commerce.TenantID,
		AppID:     cfg.Commerce.AppID,
		SecretKey: cfg.Commerce.SecretKey,
		Timeout:   cfg.Commerce.Timeout,
		UserAgent: userAgent(build),
	})
	if err != nil {
		return nil, fmt.Errorf("build commerce client: %w", err)
	}
	c.Client = client

	fetcher, err := commerce.NewFetcher(client,
		commerce.WithPageSize(cfg.Commerce.PageSize),
		commerce.WithPageDelay(cfg.Commerce.PageDelay),
		commerce.WithMaxPages(cfg.Commerce.MaxPages),
		commerce.WithObserver(c.Metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("build order fetcher: %w", err)
	}
	c.Fetcher = fetcher

	if cfg.Exclusions.FirestoreDoc != "" {
		c.firestore = pfirestore.NewProvider(cfg.Firestore)
	}

	sources, err := c.exclusionSources()
	if err != nil {
		c.Close()
		return nil, err
	}
	exclusions, err := repositories.LoadExclusionSet(ctx, logger.Named("exclusions"), sources...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load exclusion set: %w", err)
	}

	svc, err := c.buildServices(exclusions, options.clock)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Services = svc
	return c, nil
}

// Close releases the Firestore client when one was opened.
func (c *Container) Close() error {
	if c == nil || c.firestore == nil {
		return nil
	}
	return c.firestore.Close()
}

// ExposeErrorDetail reports whether upstream diagnostics may be returned to clients.
func (c *Container) ExposeErrorDetail() bool {
	return !c.Config.Security.IsProduction()
}

// TraceProjectID names the project used to format Cloud Trace resource names.
func (c *Container) TraceProjectID() string {
	if id := strings.TrimSpace(c.Config.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Config.Firestore.ProjectID)
}

func (c *Container) exclusionSources() ([]repositories.ExclusionSource, error) {
	cfg := c.Config.Exclusions
	sources := []repositories.ExclusionSource{
		repositories.EnvExclusionSource{ProductIDs: cfg.ProductIDs},
	}
	if cfg.File != "" {
		sources = append(sources, repositories.FileExclusionSource{Path: cfg.File})
	}
	if c.firestore != nil {
		repo, err := firestoreRepo.NewExclusionRepository(c.firestore, cfg.FirestoreDoc)
		if err != nil {
			return nil, fmt.Errorf("build firestore exclusion source: %w", err)
		}
		sources = append(sources, repo)
	}
	return sources, nil
}

func (c *Container) buildServices(exclusions guestcount.ExclusionSet, clock func() time.Time) (Services, error) {
	var svc Services

	reports, err := services.NewReportService(services.ReportServiceDeps{
		Fetcher:    c.Fetcher,
		Orders:     c.Client,
		Exclusions: exclusions,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build report service: %w", err)
	}
	svc.Reports = reports

	var exporterOpts []export.Option
	if name := c.Config.Export.Filename; name != "" {
		exporterOpts = append(exporterOpts, export.WithFilename(name))
	}
	if sheet := c.Config.Export.SheetName; sheet != "" {
		exporterOpts = append(exporterOpts, export.WithSheetName(sheet))
	}
	exports, err := services.NewExportService(services.ExportServiceDeps{
		Reports:  reports,
		Exporter: export.NewExporter(exporterOpts...),
		Metrics:  c.Metrics,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build export service: %w", err)
	}
	svc.Exports = exports

	connection, err := services.NewConnectionService(c.Client)
	if err != nil {
		return Services{}, fmt.Errorf("build connection service: %w", err)
	}
	svc.Connection = connection

	health, err := repositories.NewDependencyHealthRepository(c.dependencyChecks(), repositories.WithDependencyClock(clock))
	if err != nil {
		return Services{}, fmt.Errorf("build health repository: %w", err)
	}
	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: health,
		Clock:            clock,
		Build:            c.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = system

	return svc, nil
}

// dependencyChecks calls the upstream API at most once per commerceCheckInterval. Firestore only feeds the
// exclusion set at start-up, so losing it degrades readiness without failing it.
func (c *Container) dependencyChecks() []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{{
		Name:     commerceCheckName,
		Timeout:  c.Config.Commerce.Timeout,
		Critical: true,
		CacheFor: commerceCheckInterval,
		Check: func(ctx context.Context) error {
			_, err := c.Client.ListOrders(ctx, commerce.ListOrdersParams{Page: 1, Limit: 1})
			return err
		},
	}}
	if c.firestore != nil {
		doc := c.Config.Exclusions.FirestoreDoc
		checks = append(checks, repositories.DependencyCheck{
			Name: firestoreCheckName,
			Check: func(ctx context.Context) error {
				return pfirestore.Ping(ctx, c.firestore, doc)
			},
		})
	}
	return checks
}

func userAgent(build services.BuildInfo) string {
	version := strings.TrimSpace(build.Version)
	if version == "" {
		return ""
	}
	return "guest-count-check/" + version
}
