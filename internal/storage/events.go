package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, type, name, properties, value, tags, ts, trace_id, session_id, created_at`

func buildEventWhere(filter EventFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	add := func(cond string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(cond, DollarPlaceholder(len(args))))
	}
	if filter.Type != "" {
		add("type = %s", filter.Type)
	}
	if filter.TraceID != "" {
		add("trace_id = %s", filter.TraceID)
	}
	if filter.SessionID != "" {
		add("session_id = %s", filter.SessionID)
	}
	if !filter.Since.IsZero() {
		add("ts >= %s", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		add("ts <= %s", filter.Until.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Repository) CreateEvent(ctx context.Context, evt Event) (Event, error) {
	evt.ID = uuid.NewString()
	evt.Timestamp = evt.Timestamp.UTC()
	evt.CreatedAt = time.Now().UTC()
	properties, err := jsonOrNil(evt.Properties != nil, evt.Properties)
	if err != nil {
		return Event{}, fmt.Errorf("encode properties: %w", err)
	}
	tags, err := jsonOrNil(evt.Tags != nil, evt.Tags)
	if err != nil {
		return Event{}, fmt.Errorf("encode tags: %w", err)
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		evt.ID, evt.Type, evt.Name, properties, evt.Value, tags, evt.Timestamp, nullString(evt.TraceID), nullString(evt.SessionID), evt.CreatedAt,
	)
	if err != nil {
		return Event{}, err
	}
	return evt, nil
}

// ListEvents returns matching events newest first. Since and Until are both
// inclusive here.
func (r *Repository) ListEvents(ctx context.Context, filter EventFilter, limit int) ([]Event, error) {
	where, args := buildEventWhere(filter)
	query := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY ts DESC`
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT " + DollarPlaceholder(len(args))
	}
	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []Event{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, evt)
	}
	return results, rows.Err()
}

func scanEvent(row pgx.Row) (Event, error) {
	var evt Event
	var properties, tags []byte
	var traceID, sessionID *string
	if err := row.Scan(&evt.ID, &evt.Type, &evt.Name, &properties, &evt.Value, &tags, &evt.Timestamp, &traceID, &sessionID, &evt.CreatedAt); err != nil {
		return Event{}, err
	}
	if traceID != nil {
		evt.TraceID = *traceID
	}
	if sessionID != nil {
		evt.SessionID = *sessionID
	}
	if len(properties) > 0 {
		if err := json.Unmarshal(properties, &evt.Properties); err != nil {
			return Event{}, fmt.Errorf("decode properties: %w", err)
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &evt.Tags); err != nil {
			return Event{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return evt, nil
}

func jsonOrNil(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}
