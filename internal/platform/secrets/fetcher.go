// Package secrets resolves secret:// references against Google Secret Manager, with a local
// fallback file for development.
package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	defaultCallTimeout  = 10 * time.Second
	meterName           = "github.com/russellmoss/guest-count-check/internal/platform/secrets"

	sourceCache    = "cache"
	sourceRemote   = "remote"
	sourceFallback = "fallback"
	sourceError    = "error"
)

var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (secretManagerClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves and caches secrets for the lifetime of the process.
type Fetcher struct {
	client      secretManagerClient
	ownsClient  bool
	logger      *zap.Logger
	project     string
	allowLocal  bool
	callTimeout time.Duration

	fallbackPath string
	fallbackOnce sync.Once
	fallback     map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string

	fetches metric.Int64Counter
	latency metric.Float64Histogram
}

type fetcherConfig struct {
	logger       *zap.Logger
	project      string
	allowLocal   bool
	fallbackPath string
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option customises a Fetcher.
type Option func(*fetcherConfig)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithProject sets the project used for references that do not name one.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.project = strings.TrimSpace(projectID)
	}
}

// WithLocalFallback allows the fallback file to answer when Secret Manager is unreachable or
// denies access. Production deployments leave it off.
func WithLocalFallback(enabled bool) Option {
	return func(cfg *fetcherConfig) {
		cfg.allowLocal = enabled
	}
}

// WithFallbackFile overrides the fallback file path.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithMeter overrides the OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) {
		cfg.meter = m
	}
}

// WithSecretManagerClient injects a client, primarily for tests.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards options to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher builds a Fetcher. When the Secret Manager client cannot be created the fetcher
// still works from the fallback file if local fallback is enabled.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{logger: zap.NewNop(), fallbackPath: defaultFallbackPath}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}

	f := &Fetcher{
		logger:       cfg.logger.Named("secrets"),
		project:      cfg.project,
		allowLocal:   cfg.allowLocal,
		callTimeout:  defaultCallTimeout,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]string),
	}

	var err error
	if f.fetches, err = meter.Int64Counter("secrets.fetch.count",
		metric.WithDescription("Secret resolutions by source")); err != nil {
		f.logger.Warn("unable to register fetch counter", zap.Error(err))
	}
	if f.latency, err = meter.Float64Histogram("secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Secret resolution latency")); err != nil {
		f.logger.Warn("unable to register latency histogram", zap.Error(err))
	}

	switch {
	case cfg.client != nil:
		f.client = cfg.client
	default:
		client, err := newSecretManagerClient(ctx, cfg.clientOpts...)
		if err != nil {
			if !cfg.allowLocal {
				return nil, fmt.Errorf("secrets: create secret manager client: %w", err)
			}
			f.logger.Warn("secret manager unavailable; using local fallback only", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f == nil || !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// ResolveSecret implements config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the secret named by ref, caching it after the first successful read.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := ParseReference(ref)
	if err != nil {
		return "", err
	}
	resource := parsed.ResourceName(f.project)

	f.mu.RLock()
	cached, ok := f.cache[parsed.Canonical]
	f.mu.RUnlock()
	if ok {
		f.record(ctx, start, sourceCache)
		return cached, nil
	}

	var remoteErr error
	if resource != "" && f.client != nil {
		value, err := f.fetchRemote(ctx, resource)
		if err == nil {
			f.store(parsed.Canonical, value)
			f.record(ctx, start, sourceRemote)
			return value, nil
		}
		if !f.allowLocal || !fallbackEligible(err) {
			f.record(ctx, start, sourceError)
			return "", fmt.Errorf("secrets: access %s: %w", resource, err)
		}
		remoteErr = err
	} else if !f.allowLocal {
		f.record(ctx, start, sourceError)
		return "", fmt.Errorf("secrets: cannot resolve %s without a project and client", parsed.Canonical)
	}

	value, ok := f.lookupFallback(parsed)
	if !ok {
		f.record(ctx, start, sourceError)
		if remoteErr != nil {
			return "", fmt.Errorf("secrets: %s not in fallback file after remote failure: %w", parsed.Canonical, remoteErr)
		}
		return "", fmt.Errorf("secrets: %s not in fallback file", parsed.Canonical)
	}
	f.logger.Debug("secret served from fallback file", zap.String("secret", parsed.Secret))
	f.store(parsed.Canonical, value)
	f.record(ctx, start, sourceFallback)
	return value, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, resource string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", errors.New("empty payload")
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

func (f *Fetcher) store(canonical, value string) {
	f.mu.Lock()
	f.cache[canonical] = value
	f.mu.Unlock()
}

func (f *Fetcher) lookupFallback(ref Reference) (string, bool) {
	f.fallbackOnce.Do(func() {
		f.fallback, f.fallbackErr = readFallbackFile(f.fallbackPath)
	})
	if f.fallbackErr != nil {
		f.logger.Warn("fallback file unreadable", zap.Error(f.fallbackErr))
		return "", false
	}
	value, ok := f.fallback[ref.Canonical]
	return value, ok
}

func (f *Fetcher) record(ctx context.Context, start time.Time, source string) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	if f.fetches != nil {
		f.fetches.Add(ctx, 1, attrs)
	}
	if f.latency != nil {
		f.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), attrs)
	}
}

// readFallbackFile parses "secret://name=value" lines. A missing file yields an empty map.
func readFallbackFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path == "" {
		return values, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Keys use the path form for pinned versions; values may contain '='.
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		parsed, err := ParseReference(strings.TrimSpace(key))
		if err != nil {
			continue
		}
		values[parsed.Canonical] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

func fallbackEligible(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
