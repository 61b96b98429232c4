package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/vlady-pos/vlady-pos/internal/app"
	"github.com/vlady-pos/vlady-pos/internal/legacyimport"
	"github.com/vlady-pos/vlady-pos/internal/platform/db"
	"github.com/vlady-pos/vlady-pos/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	if cfg.LegacyMySQLDSN == "" {
		logger.Error("LEGACY_MYSQL_DSN is not set")
		os.Exit(2)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("report timezone", slog.Any("error", err))
		os.Exit(1)
	}

	source, err := legacyimport.OpenMySQL(cfg.LegacyMySQLDSN, loc)
	if err != nil {
		logger.Error("open legacy database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Warn("legacy close", slog.Any("error", err))
		}
	}()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool, migrations.Schema); err != nil {
		logger.Error("migrate schema", slog.Any("error", err))
		os.Exit(1)
	}

	res, err := legacyimport.NewImporter(pool, source, logger).Run(ctx)
	if err != nil {
		logger.Error("legacy import", slog.Any("error", err))
		os.Exit(1)
	}
	if len(res.Skipped) > 0 {
		logger.Warn("legacy rows were skipped", slog.Int("count", len(res.Skipped)))
	}
}
