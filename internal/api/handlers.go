package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"logwatch-backend/internal/rules"
	"logwatch-backend/internal/storage"
)

type RuleRepository interface {
	ListRules(ctx context.Context) ([]storage.AlertRule, error)
	GetRule(ctx context.Context, id string) (storage.AlertRule, error)
	CreateRule(ctx context.Context, rule storage.AlertRule) (storage.AlertRule, error)
	UpdateRule(ctx context.Context, rule storage.AlertRule) (storage.AlertRule, error)
	DeleteRule(ctx context.Context, id string) error
}

type AnomalyService interface {
	GetAnomalies(ctx context.Context) ([]storage.Anomaly, error)
	CreateAnomaly(ctx context.Context, a storage.Anomaly) (storage.Anomaly, error)
	UpdateAnomaly(ctx context.Context, id string, patch storage.AnomalyPatch) (storage.Anomaly, error)
}

type LogIngestor interface {
	Ingest(ctx context.Context, rec storage.LogRecord) (storage.LogRecord, error)
}

type LogReader interface {
	CountLogs(ctx context.Context, filter storage.LogFilter) (int, error)
	FindLogs(ctx context.Context, filter storage.LogFilter, order storage.LogOrder, limit, offset int) ([]storage.LogRecord, error)
}

type ErrorStats interface {
	GroupedErrors(ctx context.Context, since time.Time, projectID string, limit int) ([]storage.ErrorGroup, error)
	ErrorsPerHour(ctx context.Context, since time.Time, projectID string) ([]storage.HourlyCount, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, evt storage.Event) (storage.Event, error)
	ListEvents(ctx context.Context, filter storage.EventFilter, limit int) ([]storage.Event, error)
}

type Publisher interface {
	Publish(subject string, payload any) error
}

type Handler struct {
	Rules     RuleRepository
	Anomalies AnomalyService
	Ingest    LogIngestor
	Logs      LogReader
	Stats     ErrorStats
	Events    EventStore
	Bus       Publisher
	Logger    *slog.Logger
	Timeout   time.Duration
}

type errorResponse struct {
	Ok      bool                `json:"ok"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details []rules.ErrorDetail `json:"details"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts/rules", func(r chi.Router) {
		r.Post("/", h.handleRuleCreate)
		r.Get("/", h.handleRuleList)
		r.Get("/{id}", h.handleRuleGet)
		r.Put("/{id}", h.handleRuleUpdate)
		r.Delete("/{id}", h.handleRuleDelete)
	})
	r.Route("/anomalies", func(r chi.Router) {
		r.Get("/", h.handleAnomalyList)
		r.Post("/", h.handleAnomalyCreate)
		r.Put("/{id}", h.handleAnomalyUpdate)
	})
	r.Post("/logs", h.handleLogCreate)
	r.Get("/logs", h.handleLogList)
	r.Get("/logs/export", h.handleLogExport)
	r.Route("/events", func(r chi.Router) {
		r.Post("/track", h.handleEventTrack)
		r.Get("/", h.handleEventList)
	})
	r.Get("/errors/grouped", h.handleGroupedErrors)
	r.Get("/errors/hourly", h.handleErrorsPerHour)
}

func (h *Handler) context(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (h *Handler) logError(msg string, err error, attrs ...slog.Attr) {
	if h.Logger == nil {
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	h.Logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

func (h *Handler) publish(subject string, payload any) {
	if h.Bus == nil {
		return
	}
	if err := h.Bus.Publish(subject, payload); err != nil {
		h.logError("failed to publish event", err, slog.String("subject", subject))
	}
}

func writeValidationError(w http.ResponseWriter, verr *rules.ValidationError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Ok:      false,
		Code:    verr.Code,
		Message: verr.Message,
		Details: verr.Details,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "message": message})
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
