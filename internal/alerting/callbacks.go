package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"logwatch-backend/internal/storage"
)

const FiredSubject = "alert.fired"

// Callback observes a rule firing. Returned errors and panics are logged by
// the registry and never reach sibling callbacks.
type Callback func(ctx context.Context, rule storage.AlertRule, count int) error

type Registry struct {
	mu        sync.RWMutex
	callbacks []Callback
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

func (r *Registry) Register(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// NotifyAll invokes every callback in registration order.
func (r *Registry) NotifyAll(ctx context.Context, rule storage.AlertRule, count int) {
	r.mu.RLock()
	callbacks := make([]Callback, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.RUnlock()
	for i, cb := range callbacks {
		if err := r.invoke(ctx, cb, rule, count); err != nil {
			r.logger.Error("alert callback failed",
				slog.Int("callback", i),
				slog.String("rule_id", rule.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *Registry) invoke(ctx context.Context, cb Callback, rule storage.AlertRule, count int) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return cb(ctx, rule, count)
}

// LogCallback records each firing as a structured log line.
func LogCallback(logger *slog.Logger) Callback {
	return func(_ context.Context, rule storage.AlertRule, count int) error {
		logger.Info("alert triggered",
			slog.String("rule_id", rule.ID),
			slog.Int("count", count),
			slog.Int("interval_minutes", rule.IntervalMinutes),
			slog.String("type", rule.Type),
			slog.String("level", rule.Level),
			slog.String("project_id", rule.ProjectID),
			slog.Int("threshold", rule.ThresholdCount),
		)
		return nil
	}
}

type Publisher interface {
	Publish(subject string, payload any) error
}

type FiredEvent struct {
	RuleID    string    `json:"rule_id"`
	Type      string    `json:"type"`
	Level     string    `json:"level,omitempty"`
	ProjectID string    `json:"project_id"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	FiredAt   time.Time `json:"fired_at"`
}

// PublishCallback emits a FiredEvent on FiredSubject for every firing.
func PublishCallback(pub Publisher) Callback {
	return func(_ context.Context, rule storage.AlertRule, count int) error {
		return pub.Publish(FiredSubject, FiredEvent{
			RuleID:    rule.ID,
			Type:      rule.Type,
			Level:     rule.Level,
			ProjectID: rule.ProjectID,
			Count:     count,
			Threshold: rule.ThresholdCount,
			FiredAt:   time.Now().UTC(),
		})
	}
}
