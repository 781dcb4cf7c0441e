package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"logwatch-backend/internal/periodic"
	"logwatch-backend/internal/storage"
)

const (
	DefaultCheckInterval = 10 * time.Minute
	DefaultProjectID     = "default"
	SpikeMultiplier      = 3
	baselineHours        = 24
	EventSubject         = "anomaly.detected"
)

type LogSource interface {
	CountLogs(ctx context.Context, filter storage.LogFilter) (int, error)
	FindLogs(ctx context.Context, filter storage.LogFilter, order storage.LogOrder, limit, offset int) ([]storage.LogRecord, error)
}

type Store interface {
	CreateAnomaly(ctx context.Context, a storage.Anomaly) (storage.Anomaly, error)
	UpdateAnomaly(ctx context.Context, id string, patch storage.AnomalyPatch) (storage.Anomaly, error)
	ListAnomalies(ctx context.Context) ([]storage.Anomaly, error)
}

type Publisher interface {
	Publish(subject string, payload any) error
}

type Options struct {
	Interval     time.Duration
	CheckTimeout time.Duration
	ProjectID    string
}

type Detector struct {
	logs      LogSource
	store     Store
	publisher Publisher
	logger    *slog.Logger
	projectID string
	now       func() time.Time
	task      *periodic.Task
}

func NewDetector(logs LogSource, store Store, logger *slog.Logger, opts Options) *Detector {
	if opts.Interval <= 0 {
		opts.Interval = DefaultCheckInterval
	}
	if opts.ProjectID == "" {
		opts.ProjectID = DefaultProjectID
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		logs:      logs,
		store:     store,
		logger:    logger,
		projectID: opts.ProjectID,
		now:       time.Now,
	}
	d.task = periodic.New(opts.Interval, d.runCheck, periodic.WithImmediateRun(), periodic.WithTimeout(opts.CheckTimeout))
	return d
}

// SetPublisher attaches an optional sink for detected anomalies.
func (d *Detector) SetPublisher(p Publisher) {
	d.publisher = p
}

// StartPeriodicCheck runs a check right away and then once per interval.
// Calling it while running is a no-op.
func (d *Detector) StartPeriodicCheck() bool {
	started := d.task.Start()
	if started {
		d.logger.Info("anomaly detector started", slog.Duration("interval", d.task.Interval()))
	}
	return started
}

func (d *Detector) StopPeriodicCheck() {
	if d.task.Running() {
		d.logger.Info("anomaly detector stopped")
	}
	d.task.Stop()
}

func (d *Detector) Running() bool {
	return d.task.Running()
}

func (d *Detector) runCheck(ctx context.Context) {
	if _, err := d.Check(ctx); err != nil {
		d.logger.Error("anomaly check failed", slog.String("error", err.Error()))
	}
}

// Check compares the error volume of the last hour with the trailing 23-hour
// baseline and records an anomaly when it exceeds the baseline times
// SpikeMultiplier. It returns nil when no spike was found.
func (d *Detector) Check(ctx context.Context) (*storage.Anomaly, error) {
	now := d.now()
	current, err := d.logs.CountLogs(ctx, storage.LogFilter{
		Type:  storage.LogTypeError,
		Since: now.Add(-time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("count current hour: %w", err)
	}
	history, err := d.logs.FindLogs(ctx, storage.LogFilter{
		Type:  storage.LogTypeError,
		Since: now.Add(-baselineHours * time.Hour),
	}, storage.OrderTimestampAsc, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load 24h history: %w", err)
	}

	average := Baseline(HourlyBuckets(now, history))
	threshold := average * SpikeMultiplier
	// An empty history gives a zero threshold, so any current error counts.
	if float64(current) <= threshold {
		return nil, nil
	}

	created, err := d.store.CreateAnomaly(ctx, storage.Anomaly{
		Type:             storage.AnomalyErrorSpike,
		ProjectID:        d.projectID,
		DetectedAt:       now,
		CurrentHourCount: current,
		Average24hCount:  average,
		Threshold:        threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("record anomaly: %w", err)
	}
	d.logger.Warn("error spike detected",
		slog.String("anomaly_id", created.ID),
		slog.Int("current_hour_count", current),
		slog.Float64("average_24h_count", average),
		slog.Float64("threshold", threshold),
	)
	if d.publisher != nil {
		if err := d.publisher.Publish(EventSubject, created); err != nil {
			d.logger.Error("failed to publish anomaly", slog.String("anomaly_id", created.ID), slog.String("error", err.Error()))
		}
	}
	return &created, nil
}

// HourlyBuckets counts records per hour of age; index 0 is the current,
// partial hour. Records outside [0,24) hours are dropped.
func HourlyBuckets(now time.Time, records []storage.LogRecord) [baselineHours]int {
	var buckets [baselineHours]int
	for _, rec := range records {
		age := now.Sub(rec.Timestamp)
		if age < 0 {
			continue
		}
		idx := int(age / time.Hour)
		if idx >= baselineHours {
			continue
		}
		buckets[idx]++
	}
	return buckets
}

// Baseline averages buckets 1..23, excluding the current hour.
func Baseline(buckets [baselineHours]int) float64 {
	sum := 0
	for _, count := range buckets[1:] {
		sum += count
	}
	return float64(sum) / float64(baselineHours-1)
}

func (d *Detector) GetAnomalies(ctx context.Context) ([]storage.Anomaly, error) {
	return d.store.ListAnomalies(ctx)
}

func (d *Detector) CreateAnomaly(ctx context.Context, a storage.Anomaly) (storage.Anomaly, error) {
	if a.Type == "" {
		a.Type = storage.AnomalyErrorSpike
	}
	if a.ProjectID == "" {
		a.ProjectID = d.projectID
	}
	if a.DetectedAt.IsZero() {
		a.DetectedAt = d.now()
	}
	return d.store.CreateAnomaly(ctx, a)
}

// UpdateAnomaly returns storage.ErrNotFound when id does not exist.
func (d *Detector) UpdateAnomaly(ctx context.Context, id string, patch storage.AnomalyPatch) (storage.Anomaly, error) {
	return d.store.UpdateAnomaly(ctx, id, patch)
}
