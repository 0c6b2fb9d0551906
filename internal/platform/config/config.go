// Package config loads runtime configuration from the environment, an optional .env file and
// Secret Manager references.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 5 * time.Minute
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultCommerceBaseURL     = "https://api.commerce7.com/v1"
	defaultCommercePageSize    = 50
	defaultCommercePageDelay   = 500 * time.Millisecond
	defaultCommerceMaxPages    = 100
	defaultCommerceTimeout     = 30 * time.Second
	defaultSecurityEnvironment = "local"
	defaultExportRateLimit     = 10
	defaultLogLevel            = "info"
	maxCommercePageSize        = 250
)

// Config is the complete runtime configuration.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Commerce   CommerceConfig
	Exclusions ExclusionsConfig
	Firebase   FirebaseConfig
	Firestore  FirestoreConfig
	Auth       AuthConfig
	Security   SecurityConfig
	Export     ExportConfig
}

// ServerConfig configures the HTTP listener. WriteTimeout must cover a full paginated fetch.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig selects the zap level and encoding.
type LoggingConfig struct {
	Level       string
	Development bool
}

// CommerceConfig holds the upstream endpoint, credentials and pagination tuning.
type CommerceConfig struct {
	BaseURL   string
	TenantID  string
	AppID     string
	SecretKey string
	PageSize  int
	PageDelay time.Duration
	MaxPages  int
	Timeout   time.Duration
}

// ExclusionsConfig lists the sources merged into the product exclusion set.
type ExclusionsConfig struct {
	ProductIDs   []string
	File         string
	FirestoreDoc string
}

// FirebaseConfig stores Firebase project settings used for ID token verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// AuthConfig restricts who may call the authenticated endpoints.
type AuthConfig struct {
	AllowedEmailDomains []string
	Disabled            bool
	CheckRevoked        bool
}

// SecurityConfig names the deployment environment.
type SecurityConfig struct {
	Environment string
}

// IsProduction reports whether upstream diagnostics must be withheld from clients.
func (s SecurityConfig) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(s.Environment)) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// ExportConfig customises the workbook download.
type ExportConfig struct {
	Filename           string
	SheetName          string
	RateLimitPerMinute int
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists every missing or malformed setting.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes a failed secret reference.
type SecretError struct {
	Field string
	Ref   string
	Err   error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolve %s from %q: %v", e.Field, e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env path. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver resolves secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// Lookup returns the effective value of key after applying Load's precedence (explicit map,
// then process environment, then .env). Used to bootstrap the secret fetcher before Load.
func Lookup(key string, opts ...Option) (string, bool, error) {
	options := newLoaderOptions(opts)
	dotenv, err := loadDotEnv(options.envFile)
	if err != nil {
		return "", false, err
	}
	value, ok := options.lookupFunc(dotenv)(key)
	return value, ok, nil
}

func (o loaderOptions) lookupFunc(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if value, ok := o.envMap[key]; ok {
			return value, true
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotenv[key]
		return value, ok
	}
}

// Load builds Config from defaults, .env, the environment and secret references. Every
// malformed or missing value is reported together in a *ValidationError.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	dotenv, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	r := &reader{lookup: options.lookupFunc(dotenv)}

	cfg := Config{
		Server: ServerConfig{
			Port:            r.str("SERVER_PORT", r.str("PORT", defaultPort)),
			ReadTimeout:     r.duration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    r.duration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     r.duration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: r.duration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Logging: LoggingConfig{
			Level:       strings.ToLower(r.str("LOG_LEVEL", defaultLogLevel)),
			Development: r.flag("LOG_DEVELOPMENT", false),
		},
		Commerce: CommerceConfig{
			BaseURL:   r.str("COMMERCE_BASE_URL", defaultCommerceBaseURL),
			TenantID:  r.str("COMMERCE_TENANT_ID", ""),
			AppID:     r.str("COMMERCE_APP_ID", ""),
			SecretKey: r.str("COMMERCE_SECRET_KEY", ""),
			PageSize:  r.integer("COMMERCE_PAGE_SIZE", defaultCommercePageSize),
			PageDelay: r.duration("COMMERCE_PAGE_DELAY", defaultCommercePageDelay),
			MaxPages:  r.integer("COMMERCE_MAX_PAGES", defaultCommerceMaxPages),
			Timeout:   r.duration("COMMERCE_TIMEOUT", defaultCommerceTimeout),
		},
		Exclusions: ExclusionsConfig{
			ProductIDs:   r.csv("EXCLUSIONS_PRODUCT_IDS"),
			File:         r.str("EXCLUSIONS_FILE", ""),
			FirestoreDoc: strings.Trim(r.str("EXCLUSIONS_FIRESTORE_DOC", ""), "/"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       r.str("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: r.str("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    r.str("FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: r.str("FIRESTORE_EMULATOR_HOST", ""),
		},
		Auth: AuthConfig{
			AllowedEmailDomains: r.csv("AUTH_ALLOWED_EMAIL_DOMAINS"),
			Disabled:            r.flag("AUTH_DISABLED", false),
			CheckRevoked:        r.flag("AUTH_CHECK_REVOKED", false),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(r.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
		},
		Export: ExportConfig{
			Filename:           r.str("EXPORT_FILENAME", ""),
			SheetName:          r.str("EXPORT_SHEET_NAME", ""),
			RateLimitPerMinute: r.integer("EXPORT_RATE_LIMIT_PER_MINUTE", defaultExportRateLimit),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"Commerce.AppID", &cfg.Commerce.AppID},
		{"Commerce.SecretKey", &cfg.Commerce.SecretKey},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, target.name, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	r.invalid = append(r.invalid, validate(cfg)...)
	if len(r.invalid) > 0 {
		return Config{}, &ValidationError{fields: r.invalid}
	}
	return cfg, nil
}

func validate(cfg Config) []string {
	var invalid []string
	require := func(ok bool, field string) {
		if !ok {
			invalid = append(invalid, field)
		}
	}

	require(cfg.Server.Port != "", "Server.Port")
	require(cfg.Server.WriteTimeout > 0, "Server.WriteTimeout")
	require(cfg.Commerce.TenantID != "", "Commerce.TenantID")
	require(cfg.Commerce.AppID != "", "Commerce.AppID")
	require(cfg.Commerce.SecretKey != "", "Commerce.SecretKey")
	require(strings.HasPrefix(cfg.Commerce.BaseURL, "http://") || strings.HasPrefix(cfg.Commerce.BaseURL, "https://"), "Commerce.BaseURL")
	require(cfg.Commerce.PageSize > 0 && cfg.Commerce.PageSize <= maxCommercePageSize, "Commerce.PageSize")
	require(cfg.Commerce.PageDelay >= 0, "Commerce.PageDelay")
	require(cfg.Commerce.MaxPages > 0, "Commerce.MaxPages")
	require(cfg.Commerce.Timeout > 0, "Commerce.Timeout")
	require(cfg.Export.RateLimitPerMinute >= 0, "Export.RateLimitPerMinute")

	if !cfg.Auth.Disabled {
		require(cfg.Firebase.ProjectID != "", "Firebase.ProjectID")
	}
	// Authentication may only be switched off outside production.
	require(!(cfg.Auth.Disabled && cfg.Security.IsProduction()), "Auth.Disabled")

	if cfg.Exclusions.FirestoreDoc != "" {
		require(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
		require(strings.Count(cfg.Exclusions.FirestoreDoc, "/")%2 == 1, "Exclusions.FirestoreDoc")
	}
	return invalid
}

func resolveSecret(ctx context.Context, field, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Field: field, Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Field: field, Ref: ref, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

// IsSecretReference reports whether value names a secret rather than holding one.
func IsSecretReference(value string) bool {
	return isSecretReference(value)
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}
