// Package ingest turns incoming log records into persisted, fingerprinted and
// scored records.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"logwatch-backend/internal/fingerprint"
	"logwatch-backend/internal/rules"
	"logwatch-backend/internal/storage"
)

type LogWriter interface {
	CreateLog(ctx context.Context, rec storage.LogRecord) (storage.LogRecord, error)
	UpdateSeverity(ctx context.Context, id string, score int) error
}

type Scorer interface {
	Score(ctx context.Context, rec storage.LogRecord) (int, error)
}

type Ingestor struct {
	logs    LogWriter
	scorer  Scorer
	logger  *slog.Logger
	timeout time.Duration
}

func NewIngestor(logs LogWriter, scorer Scorer, logger *slog.Logger, timeout time.Duration) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Ingestor{logs: logs, scorer: scorer, logger: logger, timeout: timeout}
}

// Ingest validates and persists rec, then writes its severity score. The
// record is stored before scoring so the repeat count includes it. When
// scoring fails the persisted record is returned together with the error.
func (i *Ingestor) Ingest(ctx context.Context, rec storage.LogRecord) (storage.LogRecord, error) {
	if verr := rules.ValidateLogRecord(rec); verr != nil {
		return storage.LogRecord{}, verr
	}
	rec.Fingerprint = ""
	rec.SeverityScore = 0
	if rec.Type == storage.LogTypeError {
		if message, stack, ok := fingerprint.FromData(rec.Data); ok {
			rec.Fingerprint = fingerprint.Generate(message, stack)
		}
	}
	created, err := i.logs.CreateLog(ctx, rec)
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("create log: %w", err)
	}
	score, err := i.scorer.Score(ctx, created)
	if err != nil {
		return created, fmt.Errorf("score log %s: %w", created.ID, err)
	}
	if err := i.logs.UpdateSeverity(ctx, created.ID, score); err != nil {
		return created, fmt.Errorf("update severity %s: %w", created.ID, err)
	}
	created.SeverityScore = score
	return created, nil
}

// HandleMessage ingests a JSON-encoded record received from the bus.
func (i *Ingestor) HandleMessage(data []byte) {
	var rec storage.LogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		i.logger.Warn("invalid log message", slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()
	if _, err := i.Ingest(ctx, rec); err != nil {
		i.logger.Error("log ingest failed",
			slog.String("type", rec.Type),
			slog.String("project_id", rec.ProjectID),
			slog.String("error", err.Error()),
		)
	}
}
