package di

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/russellmoss/guest-count-check/internal/platform/config"
	"github.com/russellmoss/guest-count-check/internal/platform/secrets"
)

// secretFields lists the settings that may hold a secret reference instead of a value.
var secretFields = []string{"COMMERCE_APP_ID", "COMMERCE_SECRET_KEY"}

// LoadConfig reads the configuration, creating a Secret Manager fetcher first when any
// credential is a secret reference. The fetcher is closed once the values are resolved.
func LoadConfig(ctx context.Context, logger *zap.Logger, opts ...config.Option) (config.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	needed, err := needsSecretFetcher(opts)
	if err != nil {
		return config.Config{}, fmt.Errorf("read environment: %w", err)
	}
	if !needed {
		return config.Load(ctx, opts...)
	}

	fetcher, err := newSecretFetcher(ctx, logger, opts)
	if err != nil {
		return config.Config{}, fmt.Errorf("initialise secret fetcher: %w", err)
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	loadOpts := append(append([]config.Option(nil), opts...), config.WithSecretResolver(fetcher))
	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		var secretErr *config.SecretError
		if errors.As(err, &secretErr) {
			logger.Error("secret resolution failed", zap.String("field", secretErr.Field))
		}
		return config.Config{}, err
	}
	return cfg, nil
}

func needsSecretFetcher(opts []config.Option) (bool, error) {
	for _, key := range secretFields {
		value, ok, err := config.Lookup(key, opts...)
		if err != nil {
			return false, err
		}
		if ok && config.IsSecretReference(value) {
			return true, nil
		}
	}
	return false, nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, opts []config.Option) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		value, _, _ := config.Lookup(key, opts...)
		return strings.TrimSpace(value)
	}

	project := lookup("SECRETS_PROJECT_ID")
	if project == "" {
		project = lookup("FIREBASE_PROJECT_ID")
	}
	environment := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	production := config.SecurityConfig{Environment: environment}.IsProduction()

	// The local fallback file is a development aid and is never read in production.
	allowLocal := !production
	if raw := lookup("SECRETS_LOCAL_FALLBACK"); raw != "" && !production {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			allowLocal = parsed
		}
	}

	fetcherOpts := []secrets.Option{
		secrets.WithLogger(logger),
		secrets.WithProject(project),
		secrets.WithLocalFallback(allowLocal),
	}
	if path := lookup("SECRETS_FALLBACK_FILE"); path != "" {
		fetcherOpts = append(fetcherOpts, secrets.WithFallbackFile(path))
	}
	if credentials := lookup("FIREBASE_CREDENTIALS_FILE"); credentials != "" {
		fetcherOpts = append(fetcherOpts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, fetcherOpts...)
}
