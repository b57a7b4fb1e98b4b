package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrandonDHaskell/Janus/server/internal/config"
	"github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/scansource"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/postgres"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store/sqlite"
)

// openStore opens the configured backend.  close releases it; for SQLite it
// drains the write worker before closing the database.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (st store.Store, closeFn func(), err error) {
	switch cfg.DBDriver {
	case "sqlite":
		sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		writer := db.NewWorker(sqlDB)
		logger.Info("database ready", "driver", "sqlite", "path", cfg.DBPath)
		return sqlite.New(sqlDB, writer), func() {
			writer.Close()
			_ = sqlDB.Close()
		}, nil

	case "postgres":
		sqlDB, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		pg := postgres.New(sqlDB)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		logger.Info("database ready", "driver", "postgres")
		return pg, func() { _ = sqlDB.Close() }, nil

	case "memory":
		logger.Warn("using in-memory store; nothing will be persisted")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
}

// slotSource is both ends of the scan slot.
type slotSource interface {
	scansource.Source
	scansource.Writer
}

func openScanSource(ctx context.Context, cfg config.Config) (src slotSource, closeFn func(), err error) {
	switch cfg.ScanSource {
	case "file":
		return scansource.NewFileSource(cfg.ScanFilePath), func() {}, nil

	case "redis":
		client, err := scansource.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return scansource.NewRedisSource(client, cfg.RedisKey), func() { _ = client.Close() }, nil

	case "memory":
		return scansource.NewMemorySource(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown scan source %q", cfg.ScanSource)
}
