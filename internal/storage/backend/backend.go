// Package backend opens the store set selected by configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"midgard-metrics/internal/config"
	"midgard-metrics/internal/storage"
	chstore "midgard-metrics/internal/storage/clickhouse"
	"midgard-metrics/internal/storage/memory"
	"midgard-metrics/internal/storage/migrations"
	pgstore "midgard-metrics/internal/storage/postgres"
)

// Options controls how stores are opened.
type Options struct {
	Storage  config.StorageConfig
	Migrate  bool  // apply embedded migrations before returning
	MaxConns int32 // postgres pool size, 0 keeps the driver default
	Logger   *zap.Logger
}

// Open returns the configured stores and a cleanup function that closes
// every connection it opened.
//
// The hybrid backend keeps earnings and checkpoints in Postgres and the
// gauge series (depths, swaps, runepool) in ClickHouse.
func Open(ctx context.Context, opts Options) (*storage.Stores, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("storage")

	if opts.Storage.Backend == config.BackendMemory {
		logger.Warn("using in-memory storage, data is lost on exit")
		return memory.NewStores(), func() {}, nil
	}
	if opts.Storage.Backend != config.BackendPostgres && opts.Storage.Backend != config.BackendHybrid {
		return nil, nil, fmt.Errorf("unknown storage backend %q", opts.Storage.Backend)
	}

	pool, err := pgstore.NewPool(ctx, opts.Storage.PostgresDSN, opts.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	if opts.Migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("postgres migrations applied", zap.Strings("files", applied))
	}

	stores := pgstore.NewStores(pool)
	if opts.Storage.Backend == config.BackendPostgres {
		return stores, pool.Close, nil
	}

	var conn *chstore.Conn
	if opts.Migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, opts.Storage.ClickhouseDSN)
	} else {
		conn, err = chstore.NewConn(ctx, opts.Storage.ClickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if opts.Migrate {
		logger.Info("clickhouse migrations applied")
	}

	stores.Depths = chstore.NewDepthStore(conn)
	stores.Swaps = chstore.NewSwapStore(conn)
	stores.RunePool = chstore.NewRunePoolStore(conn)

	cleanup := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close clickhouse", zap.Error(err))
		}
		pool.Close()
	}
	return stores, cleanup, nil
}
