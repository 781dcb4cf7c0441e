// Package alerting evaluates active alert rules on a fixed interval and hands
// firing rules to the callback registry and the notification dispatcher.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"logwatch-backend/internal/notify"
	"logwatch-backend/internal/periodic"
	"logwatch-backend/internal/storage"
)

const DefaultCheckInterval = 60 * time.Second

type RuleStore interface {
	ListActiveRules(ctx context.Context) ([]storage.AlertRule, error)
	MarkRuleEvaluated(ctx context.Context, id string, at time.Time) error
}

type LogCounter interface {
	CountLogs(ctx context.Context, filter storage.LogFilter) (int, error)
}

type Notifier interface {
	Send(ctx context.Context, payload notify.Payload) error
}

type Options struct {
	Interval     time.Duration
	CheckTimeout time.Duration
}

type Scheduler struct {
	rules     RuleStore
	logs      LogCounter
	notifier  Notifier
	callbacks *Registry
	logger    *slog.Logger
	now       func() time.Time
	task      *periodic.Task
}

func NewScheduler(rules RuleStore, logs LogCounter, notifier Notifier, callbacks *Registry, logger *slog.Logger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultCheckInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if callbacks == nil {
		callbacks = NewRegistry(logger)
	}
	s := &Scheduler{
		rules:     rules,
		logs:      logs,
		notifier:  notifier,
		callbacks: callbacks,
		logger:    logger,
		now:       time.Now,
	}
	s.task = periodic.New(opts.Interval, s.runTick, periodic.WithTimeout(opts.CheckTimeout))
	return s
}

func (s *Scheduler) Callbacks() *Registry {
	return s.callbacks
}

// StartChecking is a no-op when already running.
func (s *Scheduler) StartChecking() bool {
	started := s.task.Start()
	if started {
		s.logger.Info("alert scheduler started", slog.Duration("interval", s.task.Interval()))
	}
	return started
}

func (s *Scheduler) StopChecking() {
	if s.task.Running() {
		s.logger.Info("alert scheduler stopped")
	}
	s.task.Stop()
}

func (s *Scheduler) Running() bool {
	return s.task.Running()
}

func (s *Scheduler) runTick(ctx context.Context) {
	if err := s.CheckRules(ctx); err != nil {
		s.logger.Error("alert check failed", slog.String("error", err.Error()))
	}
}

// CheckRules evaluates every active rule in order. A failing rule is logged
// and does not stop the remaining rules; only a failure to list rules is
// returned.
func (s *Scheduler) CheckRules(ctx context.Context) error {
	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("list active rules: %w", err)
	}
	for _, rule := range rules {
		if _, err := s.CheckRule(ctx, rule); err != nil {
			s.logger.Error("alert rule evaluation failed",
				slog.String("rule_id", rule.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// CheckRule counts matching logs in the rule's window and fires when the
// count reaches the threshold. A dispatch failure is returned with fired set,
// since lastEvaluatedAt has already been written and callbacks have run.
func (s *Scheduler) CheckRule(ctx context.Context, rule storage.AlertRule) (bool, error) {
	now := s.now()
	count, err := s.logs.CountLogs(ctx, storage.LogFilter{
		Type:      rule.Type,
		Level:     rule.Level,
		ProjectID: rule.ProjectID,
		Since:     now.Add(-time.Duration(rule.IntervalMinutes) * time.Minute),
	})
	if err != nil {
		return false, fmt.Errorf("count logs: %w", err)
	}
	if count < rule.ThresholdCount {
		return false, nil
	}
	if err := s.rules.MarkRuleEvaluated(ctx, rule.ID, now); err != nil {
		return false, fmt.Errorf("mark evaluated: %w", err)
	}
	evaluated := now
	rule.LastEvaluatedAt = &evaluated
	s.callbacks.NotifyAll(ctx, rule, count)
	if err := s.notifier.Send(ctx, notify.NewPayload(rule, count, now)); err != nil {
		return true, fmt.Errorf("dispatch: %w", err)
	}
	return true, nil
}
