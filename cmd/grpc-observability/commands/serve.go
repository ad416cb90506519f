package commands

import (
	"context"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/grpc-observability/internal/constants"
	"github.com/hyp3rd/grpc-observability/pkg/diagnostics"
	"github.com/hyp3rd/grpc-observability/pkg/logging"
	"github.com/hyp3rd/grpc-observability/pkg/observability"
)

func newServeCommand() *cobra.Command {
	var (
		diag     diagnostics.Config
		watch    bool
		settings = logging.DefaultSettings()
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Activate observability from the environment and serve its status",
		Long: `Activate call logging from the environment configuration, expose the
lifecycle snapshot on the diagnostics endpoint and keep running until
interrupted. With --watch, changes to the configuration file reactivate it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := logging.ParseLevel(settings.Level)
			if err != nil {
				return err
			}

			settings.Output = cmd.ErrOrStderr()
			logger := logging.FromSettings(settings)

			return serve(cmd.Context(), logger, diag, watch)
		},
	}

	cmd.Flags().StringVar(&diag.HTTPAddr, "diagnostics-addr", "127.0.0.1:9464", "Diagnostics listen address")
	cmd.Flags().StringVar(&diag.AuthToken, "auth-token", "", "Bearer token required by the diagnostics endpoint")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reactivate when the configuration file changes")
	cmd.Flags().StringVar(&settings.Level, "log-level", settings.Level, "Lifecycle log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&settings.Adapter, "log-adapter", settings.Adapter, "Lifecycle logger (slog|zap|zerolog|std)")
	cmd.Flags().StringVar(&settings.Format, "log-format", settings.Format, "Lifecycle log format (json|text)")

	return cmd
}

func serve(ctx context.Context, logger logging.Adapter, diag diagnostics.Config, watch bool) error {
	controller := observability.NewController(observability.WithLogger(logger))

	_, err := controller.Activate(ctx)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
		defer cancel()

		err := controller.Shutdown(shutdownCtx)
		if err != nil {
			logger.Error(shutdownCtx, err, "shutdown observability")
		}
	}()

	server := diagnostics.NewServer(diag, controller, logger)

	err = server.Start(ctx)
	if err != nil {
		return ewrap.Wrap(err, "start diagnostics server")
	}

	if watch {
		stop, err := observability.WatchConfigFile(ctx, controller, "")
		if err != nil {
			logger.Warn(ctx, err, "config watcher disabled")
		} else {
			defer stop()
		}
	}

	logger.Info(ctx, "serving observability status",
		attribute.String("addr", server.Addr()),
		attribute.String("path", diagnostics.StatusPath),
	)

	<-ctx.Done()

	return nil
}
