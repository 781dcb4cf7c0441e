// Package app assembles the engine components from a loaded Config. Both
// binaries share it so the API and the background engine see the same
// storage and notification wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"logwatch-backend/internal/alerting"
	"logwatch-backend/internal/anomaly"
	"logwatch-backend/internal/api"
	"logwatch-backend/internal/bus"
	"logwatch-backend/internal/config"
	"logwatch-backend/internal/ingest"
	"logwatch-backend/internal/logstore"
	"logwatch-backend/internal/notify"
	"logwatch-backend/internal/severity"
	"logwatch-backend/internal/storage"
)

// LogStore is implemented by both the primary repository and the external
// SQL log stores.
type LogStore interface {
	ingest.LogWriter
	api.LogReader
	api.ErrorStats
}

type App struct {
	Config     config.Config
	Store      *storage.Store
	Repo       *storage.Repository
	Logs       LogStore
	Publisher  *bus.Publisher
	Dispatcher *notify.Dispatcher
	Ingestor   *ingest.Ingestor
	Detector   *anomaly.Detector
	Scheduler  *alerting.Scheduler
	Health     map[string]api.HealthCheck

	external *logstore.Store
	logger   *slog.Logger
}

func New(ctx context.Context, cfg config.Config, name string, logger *slog.Logger) (*App, error) {
	store, err := storage.NewStore(ctx, cfg.Database.URL, storage.PoolOptions{
		MaxConns:       int32(cfg.Database.MaxConns),
		MinConns:       int32(cfg.Database.MinConns),
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	a := &App{
		Config: cfg,
		Store:  store,
		Repo:   storage.NewRepository(store),
		logger: logger,
		Health: map[string]api.HealthCheck{"db": store.Pool.Ping},
	}
	a.Logs = a.Repo
	if cfg.LogStore.Type != "" {
		ext, err := logstore.New(logstore.Config{
			Type:     cfg.LogStore.Type,
			Host:     cfg.LogStore.Host,
			Port:     cfg.LogStore.Port,
			User:     cfg.LogStore.User,
			Password: cfg.LogStore.Password,
			Database: cfg.LogStore.Database,
			SSLMode:  cfg.LogStore.SSLMode,
			Encrypt:  cfg.LogStore.Encrypt,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open log store: %w", err)
		}
		a.external = ext
		a.Logs = ext
		a.Health["log_store"] = ext.Ping
	}
	if cfg.NATS.Enabled {
		pub, err := bus.NewPublisher(cfg.NATS.URL, name)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.Publisher = pub
	}

	a.Dispatcher = notify.NewDispatcher(
		notify.NewWebhookSender(nil),
		notify.NewSlackSender(nil),
		notify.NewTelegramSender(nil, cfg.Telegram.BotToken, cfg.Telegram.APIURL),
		notify.NewEmailSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  30 * time.Second,
		}),
	)
	a.Ingestor = ingest.NewIngestor(a.Logs, severity.NewScorer(a.Logs), logger, cfg.Server.RequestTimeout)
	a.Detector = anomaly.NewDetector(a.Logs, a.Repo, logger, anomaly.Options{
		Interval:     cfg.Anomaly.CheckInterval,
		CheckTimeout: cfg.Anomaly.CheckTimeout,
		ProjectID:    cfg.Anomaly.ProjectID,
	})

	callbacks := alerting.NewRegistry(logger)
	callbacks.Register(alerting.LogCallback(logger))
	if a.Publisher != nil {
		callbacks.Register(alerting.PublishCallback(a.Publisher))
		a.Detector.SetPublisher(a.Publisher)
	}
	a.Scheduler = alerting.NewScheduler(a.Repo, a.Logs, a.Dispatcher, callbacks, logger, alerting.Options{
		Interval:     cfg.Alerts.CheckInterval,
		CheckTimeout: cfg.Alerts.CheckTimeout,
	})
	return a, nil
}

// Handler returns the REST handler backed by this App.
func (a *App) Handler() *api.Handler {
	h := &api.Handler{
		Rules:     a.Repo,
		Anomalies: a.Detector,
		Ingest:    a.Ingestor,
		Logs:      a.Logs,
		Stats:     a.Logs,
		Events:    a.Repo,
		Logger:    a.logger,
		Timeout:   a.Config.Server.RequestTimeout,
	}
	if a.Publisher != nil {
		h.Bus = a.Publisher
	}
	return h
}

func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.StopChecking()
	}
	if a.Detector != nil {
		a.Detector.StopPeriodicCheck()
	}
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.external != nil {
		if err := a.external.Close(); err != nil {
			a.logger.Warn("failed to close log store", slog.String("error", err.Error()))
		}
	}
	a.Store.Close()
}
