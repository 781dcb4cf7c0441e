package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const logColumns = `id, type, project_id, ts, level, event, payload, data, fingerprint, severity_score`

func (r *Repository) CreateLog(ctx context.Context, rec LogRecord) (LogRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	payload, data, err := EncodeLogJSON(rec)
	if err != nil {
		return LogRecord{}, err
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO logs (`+logColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.Type, rec.ProjectID, rec.Timestamp, nullString(rec.Level), nullString(rec.Event), payload, data, nullString(rec.Fingerprint), rec.SeverityScore,
	)
	if err != nil {
		return LogRecord{}, err
	}
	return rec, nil
}

func (r *Repository) UpdateSeverity(ctx context.Context, id string, score int) error {
	tag, err := r.Store.Pool.Exec(ctx, `UPDATE logs SET severity_score=$1 WHERE id=$2`, score, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CountLogs(ctx context.Context, filter LogFilter) (int, error) {
	where, args := BuildLogWhere(filter, DollarPlaceholder)
	var count int
	if err := r.Store.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM logs`+where, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// FindLogs ignores offset unless limit is set.
func (r *Repository) FindLogs(ctx context.Context, filter LogFilter, order LogOrder, limit, offset int) ([]LogRecord, error) {
	where, args := BuildLogWhere(filter, DollarPlaceholder)
	query := `SELECT ` + logColumns + ` FROM logs` + where + OrderClause(order)
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if offset > 0 {
			args = append(args, offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}
	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []LogRecord{}
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// GroupedErrors returns the most frequent error fingerprints since the given time.
func (r *Repository) GroupedErrors(ctx context.Context, since time.Time, projectID string, limit int) ([]ErrorGroup, error) {
	where, args := BuildLogWhere(LogFilter{Type: LogTypeError, ProjectID: projectID, Since: since}, DollarPlaceholder)
	args = append(args, limit)
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT fingerprint, COUNT(id), MIN(ts), MAX(ts) FROM logs`+where+` AND fingerprint IS NOT NULL
		GROUP BY fingerprint ORDER BY COUNT(id) DESC LIMIT `+DollarPlaceholder(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []ErrorGroup{}
	for rows.Next() {
		var g ErrorGroup
		if err := rows.Scan(&g.Fingerprint, &g.Count, &g.FirstOccurrence, &g.LastOccurrence); err != nil {
			return nil, err
		}
		results = append(results, g)
	}
	return results, rows.Err()
}

func (r *Repository) ErrorsPerHour(ctx context.Context, since time.Time, projectID string) ([]HourlyCount, error) {
	where, args := BuildLogWhere(LogFilter{Type: LogTypeError, ProjectID: projectID, Since: since}, DollarPlaceholder)
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT date_trunc('hour', ts) AS hour, COUNT(id) FROM logs`+where+`
		GROUP BY hour ORDER BY hour ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []HourlyCount{}
	for rows.Next() {
		var h HourlyCount
		if err := rows.Scan(&h.Hour, &h.Count); err != nil {
			return nil, err
		}
		h.Hour = h.Hour.UTC()
		results = append(results, h)
	}
	return results, rows.Err()
}

func scanLog(row pgx.Row) (LogRecord, error) {
	var rec LogRecord
	var level, event, fingerprint *string
	var payload, data []byte
	if err := row.Scan(&rec.ID, &rec.Type, &rec.ProjectID, &rec.Timestamp, &level, &event, &payload, &data, &fingerprint, &rec.SeverityScore); err != nil {
		return LogRecord{}, err
	}
	if level != nil {
		rec.Level = *level
	}
	if event != nil {
		rec.Event = *event
	}
	if fingerprint != nil {
		rec.Fingerprint = *fingerprint
	}
	if err := DecodeLogJSON(&rec, payload, data); err != nil {
		return LogRecord{}, err
	}
	return rec, nil
}

// EncodeLogJSON marshals the payload and data columns of a record. A nil
// payload is returned as nil so it is stored as SQL NULL.
func EncodeLogJSON(rec LogRecord) ([]byte, []byte, error) {
	var payload []byte
	if rec.Payload != nil {
		encoded, err := json.Marshal(rec.Payload)
		if err != nil {
			return nil, nil, fmt.Errorf("encode payload: %w", err)
		}
		payload = encoded
	}
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("encode data: %w", err)
	}
	return payload, data, nil
}

func DecodeLogJSON(rec *LogRecord, payload, data []byte) error {
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	rec.Data = map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
