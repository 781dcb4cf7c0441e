package main

import (
	"context"
	"log/slog"
	"os"

	"logwatch-backend/internal/config"
	"logwatch-backend/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ctx := context.Background()
	store, err := storage.NewStore(ctx, cfg.Database.URL, storage.PoolOptions{
		MaxConns:       1,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		logger.Error("failed to connect", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	applied, err := store.Migrate(ctx, cfg.Database.MigrationsDir)
	for _, name := range applied {
		logger.Info("applied migration", slog.String("file", name))
	}
	if err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		store.Close()
		os.Exit(1)
	}
	logger.Info("migrations up to date", slog.String("dir", cfg.Database.MigrationsDir), slog.Int("applied", len(applied)))
}
