// Package main runs a one-shot backfill of Midgard history.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"midgard-metrics/internal/config"
	"midgard-metrics/internal/ingestion"
	"midgard-metrics/internal/logging"
	"midgard-metrics/internal/midgard"
	"midgard-metrics/internal/observability"
	"midgard-metrics/internal/scheduler"
	"midgard-metrics/internal/storage/backend"
)

func main() {
	flags := append(config.Flags(),
		&cli.StringSliceFlag{Name: "family", Usage: "families to ingest (default: all)"},
		&cli.StringFlag{Name: "from", Usage: "start time, RFC3339 or Unix seconds (default: 24h ago)"},
		&cli.BoolFlag{Name: "resume", Usage: "continue each stream from its saved checkpoint"},
		&cli.BoolFlag{Name: "migrate", Usage: "apply migrations before ingesting"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on `ADDR` while running"},
	)

	app := &cli.App{
		Name:   "midgard-ingest",
		Usage:  "backfill Midgard pool history up to now",
		Flags:  flags,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromCLI(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	from, err := parseFrom(c.String("from"), time.Now())
	if err != nil {
		return err
	}
	streams, err := selectStreams(cfg.Ingestion.Pools, c.StringSlice("family"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		go serveMetrics(addr, logger)
	}

	stores, cleanup, err := backend.Open(ctx, backend.Options{
		Storage: cfg.Storage,
		Migrate: c.Bool("migrate"),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer cleanup()

	ingester := ingestion.New(ingestion.Options{
		Source: midgard.NewHTTPClient(cfg.Midgard.URL,
			midgard.WithTimeout(cfg.Midgard.Timeout),
			midgard.WithRateLimit(cfg.Midgard.RequestsPerSecond, cfg.Midgard.Burst),
		),
		Stores:   *stores,
		PageSize: cfg.Midgard.PageSize,
		Workers:  cfg.Ingestion.Workers,
		Logger:   logger,
	})

	logger.Info("starting backfill",
		zap.Int64("from", from),
		zap.Bool("resume", c.Bool("resume")),
		zap.Int("streams", len(streams)))

	var errs error
	for _, st := range streams {
		if ctx.Err() != nil {
			break
		}
		_, err := ingester.Run(ctx, ingestion.Request{
			Family: st.Family,
			Pool:   st.Pool,
			From:   from,
			Resume: c.Bool("resume"),
		})
		errs = multierr.Append(errs, err)
	}
	if ctx.Err() != nil {
		return multierr.Append(errs, ctx.Err())
	}
	if errs != nil {
		return fmt.Errorf("%d of %d streams failed: %w", len(multierr.Errors(errs)), len(streams), errs)
	}
	logger.Info("backfill complete")
	return nil
}

// parseFrom accepts Unix seconds or RFC3339. An empty value means 24 hours
// before now.
func parseFrom(s string, now time.Time) (int64, error) {
	if s == "" {
		return now.Add(-24 * time.Hour).Unix(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("--from must be Unix seconds or RFC3339: %w", err)
	}
	return t.Unix(), nil
}

// selectStreams returns the streams of pools limited to families.
// No families means all of them.
func selectStreams(pools, families []string) ([]scheduler.Stream, error) {
	all := scheduler.Streams(pools)
	if len(families) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(families))
	for _, f := range families {
		known := false
		for _, k := range ingestion.Families {
			known = known || k == f
		}
		if !known {
			return nil, fmt.Errorf("%w: %q", ingestion.ErrUnknownFamily, f)
		}
		want[f] = true
	}

	var out []scheduler.Stream
	for _, st := range all {
		if want[st.Family] {
			out = append(out, st)
		}
	}
	return out, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}
