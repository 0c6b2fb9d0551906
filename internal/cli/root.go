// Package cli implements the guestcount operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/di"
	"github.com/russellmoss/guest-count-check/internal/platform/config"
	"github.com/russellmoss/guest-count-check/internal/platform/observability"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
	"github.com/russellmoss/guest-count-check/internal/services"
)

const serviceName = "guest-count-check"

// Build carries link-time metadata. Empty fields fall back to BUILD_VERSION and
// BUILD_COMMIT_SHA from the environment.
type Build struct {
	Version   string
	CommitSHA string
}

type rootOptions struct {
	envFile  string
	logLevel string
	build    Build
	out      io.Writer
}

// NewRootCommand returns the guestcount command tree. out receives command output; logs go to
// stderr through zap.
func NewRootCommand(build Build, out io.Writer) *cobra.Command {
	opts := &rootOptions{build: build, out: out}

	root := &cobra.Command{
		Use:           "guestcount",
		Short:         "Audit paid orders that are missing a guest count",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file read before the process environment; empty disables it")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(newServeCommand(opts), newCheckConnectionCommand(opts), newReportCommand(opts))
	return root
}

// session is the wiring shared by every command.
type session struct {
	logger    *zap.Logger
	container *di.Container
}

func (s *session) close() {
	if err := s.container.Close(); err != nil {
		s.logger.Warn("container close error", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func (o *rootOptions) configOptions() []config.Option {
	return []config.Option{config.WithEnvFile(o.envFile)}
}

func (o *rootOptions) open(ctx context.Context, name string) (context.Context, *session, error) {
	cfgOpts := o.configOptions()
	level := o.logLevel
	if level == "" {
		level, _, _ = config.Lookup("LOG_LEVEL", cfgOpts...)
	}
	build := o.resolveBuild(cfgOpts)

	base, err := observability.NewLogger(observability.LoggerConfig{
		Level:   level,
		Service: serviceName,
		Version: build.Version,
	})
	if err != nil {
		return ctx, nil, fmt.Errorf("initialise logger: %w", err)
	}
	logger := base.Named(name)

	cfg, err := di.LoadConfig(ctx, logger, cfgOpts...)
	if err != nil {
		_ = base.Sync()
		return ctx, nil, fmt.Errorf("load configuration: %w", err)
	}

	container, err := di.NewContainer(ctx, cfg, logger, build)
	if err != nil {
		_ = base.Sync()
		return ctx, nil, fmt.Errorf("build container: %w", err)
	}
	return requestctx.WithLogger(ctx, logger), &session{logger: logger, container: container}, nil
}

func (o *rootOptions) resolveBuild(cfgOpts []config.Option) services.BuildInfo {
	lookup := func(key string) string {
		value, _, _ := config.Lookup(key, cfgOpts...)
		return strings.TrimSpace(value)
	}
	build := services.BuildInfo{
		Version:   strings.TrimSpace(o.build.Version),
		CommitSHA: strings.TrimSpace(o.build.CommitSHA),
		StartedAt: time.Now().UTC(),
	}
	if build.Version == "" {
		build.Version = lookup("BUILD_VERSION")
	}
	if build.Version == "" {
		build.Version = "dev"
	}
	if build.CommitSHA == "" {
		build.CommitSHA = lookup("BUILD_COMMIT_SHA")
	}
	return build
}
