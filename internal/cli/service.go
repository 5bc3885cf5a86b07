package cli

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sqlquest/internal/config"
	"sqlquest/internal/httpapi"
	"sqlquest/internal/lessons"
	"sqlquest/internal/logging"
	"sqlquest/internal/sqlrun"
)

// NewServiceCommand builds the sqlquest-service root command.
func NewServiceCommand() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
		driver     string
	)

	cmd := &cobra.Command{
		Use:           "sqlquest-service",
		Short:         "Serve the SQL lesson catalog and query runner over HTTP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = addr
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("driver") {
				cfg.Engine.Driver = driver
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return Serve(cmd.Context(), cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&addr, "addr", ":8080", "HTTP listen address")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&driver, "driver", sqlrun.DefaultDriver, "SQL driver for query stores (sqlite3 or sqlite)")
	return cmd
}

// Serve listens on cfg.Server.Addr until ctx is done.
func Serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, cfg, logger)
}

// ServeListener serves on ln and shuts down gracefully, within
// cfg.Server.ShutdownTimeout, once ctx is done.
func ServeListener(ctx context.Context, ln net.Listener, cfg config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog, err := lessons.Builtin()
	if err != nil {
		_ = ln.Close()
		return err
	}

	runner := sqlrun.NewService(
		sqlrun.WithDriver(cfg.Engine.Driver),
		sqlrun.WithTimeout(cfg.Engine.QueryTimeout),
		sqlrun.WithLogger(logger.Named("sqlrun")),
	)

	server := &http.Server{
		Handler: httpapi.NewRouter(runner, catalog, logger.Named("http"), httpapi.Options{
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			CORSOrigin:   cfg.Server.CORSOrigin,
		}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	logger.Info("sqlquest-service listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("driver", runner.Driver()),
		zap.Int("lessons", len(catalog.Lessons())),
	)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
