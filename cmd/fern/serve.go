package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/registry"
	"github.com/Ramsey-B/fern/pkg/routes/entities"
	"github.com/Ramsey-B/fern/pkg/routes/features"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/projects"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, sync, err := bootstrap()
		if err != nil {
			return err
		}
		defer sync()

		return serve(cmd.Context(), cfg, logger)
	},
}

// services holds everything the startup sequence brings up.
type services struct {
	db       database.DB
	redis    *redis.Client
	producer *kafka.Producer
	graph    *graph.Client
	registry *registry.Service
}

func serve(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	svc := &services{}
	checker := health.NewChecker(cfg.Version)

	boot := startup.New(logger, cfg.StartupMaxAttempts, cfg.StartupBackoffUnit)
	registryRequires := addDependencies(boot, cfg, logger, svc, checker)
	boot.Add(startup.Func{
		Name:     "registry",
		Requires: registryRequires,
		OnStart: func(ctx context.Context) error {
			svc.registry = registry.NewService(svc.db, logger, registryOptions(cfg, svc, logger)...)
			if !cfg.SeedGlobalProject {
				return nil
			}
			id, err := svc.registry.SeedGlobalProject(ctx)
			if err != nil {
				return fmt.Errorf("failed to seed global project: %w", err)
			}
			logger.WithField("project_id", id).Info("Global project ready")
			return nil
		},
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := boot.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies")
		}
	}()

	e := newServer(cfg, logger, svc.registry, checker)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Registry API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	checker.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	checker.SetReady(false)
	logger.Info("Shutting down registry API")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// addDependencies registers the store and every enabled integration, and
// returns the names the registry must wait for.
func addDependencies(boot *startup.Startup, cfg *config.Config, logger ectologger.Logger, svc *services, checker *health.Checker) []string {
	requires := []string{"database"}

	if cfg.TracingEnabled {
		var shutdown func(context.Context) error
		boot.Add(startup.Func{
			Name: "tracing",
			OnStart: func(ctx context.Context) error {
				var err error
				shutdown, err = tracing.Setup(ctx, cfg.TracingConfig())
				return err
			},
			OnStop: func(ctx context.Context) error {
				if shutdown == nil {
					return nil
				}
				return shutdown(ctx)
			},
		})
		requires = append(requires, "tracing")
	}

	boot.Add(startup.Func{
		Name: "database",
		OnStart: func(ctx context.Context) error {
			dbCfg, err := cfg.DatabaseConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(ctx, dbCfg, logger)
			if err != nil {
				return err
			}
			if err := database.NewMigrationService(logger, cfg.MigrationConfig()).Migrate(ctx, db); err != nil {
				_ = db.Close()
				return err
			}
			svc.db = db
			checker.AddCheck("database", health.PingFunc(db.PingContext))
			return nil
		},
		OnStop: func(context.Context) error {
			if svc.db == nil {
				return nil
			}
			return svc.db.Close()
		},
	})

	if cfg.LockEnabled {
		boot.Add(startup.Func{
			Name: "redis",
			OnStart: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, cfg.RedisConfig(), logger)
				if err != nil {
					return err
				}
				svc.redis = client
				checker.AddCheck("redis", client)
				return nil
			},
			OnStop: func(context.Context) error {
				if svc.redis == nil {
					return nil
				}
				return svc.redis.Close()
			},
		})
		requires = append(requires, "redis")
	}

	if cfg.KafkaEnabled {
		boot.Add(startup.Func{
			Name: "kafka",
			OnStart: func(context.Context) error {
				svc.producer = kafka.NewProducer(cfg.KafkaConfig(), logger)
				return nil
			},
			OnStop: func(context.Context) error {
				if svc.producer == nil {
					return nil
				}
				return svc.producer.Close()
			},
		})
		requires = append(requires, "kafka")
	}

	if cfg.GraphEnabled {
		boot.Add(startup.Func{
			Name: "graph",
			OnStart: func(ctx context.Context) error {
				client, err := graph.NewClient(cfg.GraphConfig(), logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				svc.graph = client
				checker.AddCheck("graph", health.PingFunc(client.VerifyConnectivity))
				return nil
			},
			OnStop: func(ctx context.Context) error {
				if svc.graph == nil {
					return nil
				}
				return svc.graph.Close(ctx)
			},
		})
		requires = append(requires, "graph")
	}

	return requires
}

func registryOptions(cfg *config.Config, svc *services, logger ectologger.Logger) []registry.Option {
	var opts []registry.Option
	if svc.redis != nil {
		opts = append(opts, registry.WithLocker(redis.NewLocker(svc.redis, cfg.LockKeyPrefix, cfg.LockTTL, cfg.LockWait)))
	}
	if svc.producer != nil {
		opts = append(opts, registry.WithObserver(events.NewEmitter(svc.producer, logger)))
	}
	if svc.graph != nil {
		opts = append(opts, registry.WithObserver(graph.NewProjector(svc.graph, logger)))
	}
	return opts
}

func newServer(cfg *config.Config, logger ectologger.Logger, reg registry.Registry, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger, cfg.Debugging)

	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName, otelecho.WithSkipper(func(c echo.Context) bool {
			return c.Path() == cfg.MetricsPath
		})))
	}
	e.Use(
		echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{"*"},
		}),
		middleware.Context(),
		middleware.Logger(logger),
		middleware.Metrics(),
	)

	if cfg.MetricsEnabled {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group(cfg.APIBase)
	checker.Register(api)
	projects.NewHandler(reg, logger).Register(api)
	features.NewHandler(reg, logger).Register(api)
	entities.NewHandler(reg, logger).Register(api)

	return e
}
