package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"logwatch-backend/internal/api"
	"logwatch-backend/internal/app"
	"logwatch-backend/internal/bus"
	"logwatch-backend/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	a, err := app.New(context.Background(), cfg, "logwatch-engine", logger)
	if err != nil {
		logger.Error("failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	if cfg.NATS.Enabled {
		sub, err := bus.NewSubscriber(cfg.NATS.URL, "logwatch-engine-ingest")
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer sub.Close()
		if _, err := sub.Subscribe(bus.SubjectLogIngest, cfg.NATS.IngestQueue, a.Ingestor.HandleMessage); err != nil {
			logger.Error("failed to subscribe", slog.String("subject", bus.SubjectLogIngest), slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("consuming logs", slog.String("subject", bus.SubjectLogIngest), slog.String("queue", cfg.NATS.IngestQueue))
	}

	a.Scheduler.StartChecking()
	a.Detector.StartPeriodicCheck()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	api.RegisterHealth(r, a.Health)
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{
			"alerts":    a.Scheduler.Running(),
			"anomalies": a.Detector.Running(),
		})
	})
	admin := &http.Server{
		Addr:         ":" + cfg.Server.AdminPort,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", slog.String("error", err.Error()))
		}
	}()

	logger.Info("engine started",
		slog.String("admin_port", cfg.Server.AdminPort),
		slog.Duration("alert_interval", cfg.Alerts.CheckInterval),
		slog.Duration("anomaly_interval", cfg.Anomaly.CheckInterval),
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	a.Scheduler.StopChecking()
	a.Detector.StopPeriodicCheck()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = admin.Shutdown(ctx)
	logger.Info("engine stopped")
}

