package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/dataagent/config"
	"github.com/isdmx/dataagent/dataset"
	"github.com/isdmx/dataagent/history"
	"github.com/isdmx/dataagent/logger"
	"github.com/isdmx/dataagent/mcpserver"
	"github.com/isdmx/dataagent/sandbox"
	"github.com/isdmx/dataagent/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run the MCP server on the transport named by server.transport.

Configuration is read from config.yaml in . or ./config and from
DATAAGENT_* environment variables, e.g. DATAAGENT_SANDBOX_BACKEND=docker.`,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			telemetry.NewMetrics,
			dataset.NewRegistry,
			newExecutor,
			newStore,
			mcpserver.New,
		),

		fx.Invoke(
			registerTracing,
			registerTelemetryServer,
			registerRetention,
			registerTransport,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newExecutor(cfg *config.Config, log *zap.Logger, metrics *telemetry.Metrics) (sandbox.Executor, error) {
	executor, err := sandbox.NewExecutor(log, cfg)
	if err != nil {
		return nil, err
	}
	return sandbox.NewInstrumentedExecutor(executor, cfg.Sandbox.Backend, metrics, log), nil
}

func newStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (history.Store, error) {
	store, err := history.Open(cfg.Storage.Path, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func registerTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) {
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, telemetry.TracerConfig{
				Enabled:     cfg.Telemetry.TracingEnabled,
				Endpoint:    cfg.Telemetry.OTLPEndpoint,
				ServiceName: cfg.Telemetry.ServiceName,
				Version:     version,
			})
			if err != nil {
				return err
			}
			if cfg.Telemetry.TracingEnabled {
				log.Info("tracing enabled", zap.String("endpoint", cfg.Telemetry.OTLPEndpoint))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

func registerTelemetryServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, metrics *telemetry.Metrics) {
	if cfg.Telemetry.MetricsPort == 0 {
		return
	}
	srv := telemetry.NewServer(log, metrics, cfg.Telemetry.MetricsPort)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start()
		},
		OnStop: srv.Shutdown,
	})
}

func registerRetention(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, store history.Store, metrics *telemetry.Metrics) error {
	if cfg.Storage.RetentionSchedule == "" {
		return nil
	}
	retention, err := history.NewRetention(log, store, cfg.Storage.RetentionSchedule, cfg.GetRetention(), metrics.SessionsPruned)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			retention.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			retention.Stop()
			return nil
		},
	})
	return nil
}

// registerTransport serves MCP in the background and stops the app when the
// transport ends, e.g. when the stdio client closes its pipe
func registerTransport(lc fx.Lifecycle, sd fx.Shutdowner, cfg *config.Config, log *zap.Logger, server *mcpserver.MCPServer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			serve := server.ServeStdio
			if cfg.Server.Transport == "http" {
				serve = server.ServeHTTP
			}
			go func() {
				err := serve()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("MCP transport stopped", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(1))
					return
				}
				_ = sd.Shutdown()
			}()
			return nil
		},
		OnStop: server.Shutdown,
	})
}
