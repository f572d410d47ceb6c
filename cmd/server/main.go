// Package main runs the HTTP API together with the hourly ingestion
// scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"midgard-metrics/internal/api"
	"midgard-metrics/internal/config"
	"midgard-metrics/internal/ingestion"
	"midgard-metrics/internal/logging"
	"midgard-metrics/internal/midgard"
	"midgard-metrics/internal/query"
	"midgard-metrics/internal/scheduler"
	"midgard-metrics/internal/storage/backend"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "midgard-server",
		Usage: "serve Midgard pool history and keep it up to date",
		Flags: config.Flags(),
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and the ingestion scheduler",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "secret", Usage: "shared secret for trigger routes"},
			&cli.DurationFlag{Name: "period", Usage: "time between scheduler ticks"},
			&cli.BoolFlag{Name: "migrate", Usage: "apply migrations on start"},
			&cli.BoolFlag{Name: "no-scheduler", Usage: "serve reads and triggers only"},
		},
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply embedded database migrations and exit",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			_, cleanup, err := backend.Open(c.Context, backend.Options{Storage: cfg.Storage, Migrate: true, Logger: logger})
			if err != nil {
				return err
			}
			cleanup()
			logger.Info("migrations complete", zap.String("backend", cfg.Storage.Backend))
			return nil
		},
	}
}

func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.FromCLI(c)
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("addr") {
		cfg.HTTP.Addr = c.String("addr")
	}
	if c.IsSet("secret") {
		cfg.HTTP.Secret = c.String("secret")
	}
	if c.IsSet("period") {
		cfg.Ingestion.Period = c.Duration("period")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := backend.Open(ctx, backend.Options{
		Storage: cfg.Storage,
		Migrate: c.Bool("migrate"),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer cleanup()

	client := midgard.NewHTTPClient(cfg.Midgard.URL,
		midgard.WithTimeout(cfg.Midgard.Timeout),
		midgard.WithRateLimit(cfg.Midgard.RequestsPerSecond, cfg.Midgard.Burst),
	)
	ingester := ingestion.New(ingestion.Options{
		Source:   client,
		Stores:   *stores,
		PageSize: cfg.Midgard.PageSize,
		Workers:  cfg.Ingestion.Workers,
		Logger:   logger,
	})
	sched := scheduler.New(scheduler.Options{
		Runner: ingester,
		Pools:  cfg.Ingestion.Pools,
		Period: cfg.Ingestion.Period,
		Logger: logger,
	})
	engine, err := query.New(query.Options{Stores: *stores, Logger: logger})
	if err != nil {
		return fmt.Errorf("create query engine: %w", err)
	}

	if cfg.HTTP.Secret == "" {
		logger.Warn("no shared secret configured, trigger routes will refuse every request")
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.New(api.Options{
			Engine:      engine,
			Ingester:    ingester,
			Batcher:     sched,
			Checkpoints: stores.Checkpoints,
			Secret:      cfg.HTTP.Secret,
			Logger:      logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if !c.Bool("no-scheduler") {
		g.Go(func() error {
			if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
