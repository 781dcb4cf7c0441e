// Package logstore keeps log records in an external SQL database reached
// through database/sql. Postgres (lib/pq), MySQL and SQL Server are
// supported; the table layout matches migrations/logstore.
package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"logwatch-backend/internal/storage"
)

const DefaultTable = "logs"

var logColumns = []string{"id", "type", "project_id", "ts", "level", "event", "payload", "data", "fingerprint", "severity_score"}

type Config struct {
	Type     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Encrypt  string
	Table    string
}

type Store struct {
	db      *sql.DB
	dialect dialect
	table   string
	columns string
}

func New(cfg Config) (*Store, error) {
	d, err := dialectFor(cfg.Type)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, d.dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s log store: %w", d.name, err)
	}
	store, err := newStore(db, d, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func newStore(db *sql.DB, d dialect, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	quotedTable, err := quoteQualified(table, 2, d.quote)
	if err != nil {
		return nil, fmt.Errorf("log table: %w", err)
	}
	quoted := make([]string, len(logColumns))
	for i, col := range logColumns {
		quoted[i] = d.quote(col)
	}
	return &Store{db: db, dialect: d, table: quotedTable, columns: strings.Join(quoted, ", ")}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.dialect.name, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.dialect.placeholder(i + 1)
	}
	return strings.Join(ph, ",")
}

func (s *Store) CreateLog(ctx context.Context, rec storage.LogRecord) (storage.LogRecord, error) {
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
	payload, data, err := storage.EncodeLogJSON(rec)
	if err != nil {
		return storage.LogRecord{}, err
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, s.columns, s.placeholders(len(logColumns)))
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Type, rec.ProjectID, rec.Timestamp, nullString(rec.Level), nullString(rec.Event),
		jsonArg(payload), string(data), nullString(rec.Fingerprint), rec.SeverityScore,
	)
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("insert %s log: %w", s.dialect.name, err)
	}
	return rec, nil
}

func (s *Store) UpdateSeverity(ctx context.Context, id string, score int) error {
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		s.table, s.dialect.quote("severity_score"), s.dialect.placeholder(1), s.dialect.quote("id"), s.dialect.placeholder(2))
	res, err := s.db.ExecContext(ctx, query, score, id)
	if err != nil {
		return fmt.Errorf("update %s severity: %w", s.dialect.name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CountLogs(ctx context.Context, filter storage.LogFilter) (int, error) {
	where, args := storage.BuildLogWhere(filter, s.dialect.placeholder)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s logs: %w", s.dialect.name, err)
	}
	return count, nil
}

// findQuery ignores offset unless limit is set.
func (s *Store) findQuery(filter storage.LogFilter, order storage.LogOrder, limit, offset int) (string, []any) {
	where, args := storage.BuildLogWhere(filter, s.dialect.placeholder)
	query := "SELECT " + s.columns + " FROM " + s.table + where + storage.OrderClause(order)
	switch {
	case limit > 0 && offset > 0:
		args = append(args, limit, offset)
		query += s.dialect.page(len(args)-1, len(args))
	case limit > 0:
		args = append(args, limit)
		query += s.dialect.limit(len(args))
	}
	return query, args
}

func (s *Store) FindLogs(ctx context.Context, filter storage.LogFilter, order storage.LogOrder, limit, offset int) ([]storage.LogRecord, error) {
	query, args := s.findQuery(filter, order, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s logs: %w", s.dialect.name, err)
	}
	defer rows.Close()
	results := []storage.LogRecord{}
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s log: %w", s.dialect.name, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s logs: %w", s.dialect.name, err)
	}
	return results, nil
}

func scanLog(rows *sql.Rows) (storage.LogRecord, error) {
	var rec storage.LogRecord
	var level, event, fingerprint sql.NullString
	var payload, data []byte
	if err := rows.Scan(&rec.ID, &rec.Type, &rec.ProjectID, &rec.Timestamp, &level, &event, &payload, &data, &fingerprint, &rec.SeverityScore); err != nil {
		return storage.LogRecord{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	rec.Level = level.String
	rec.Event = event.String
	rec.Fingerprint = fingerprint.String
	if err := storage.DecodeLogJSON(&rec, payload, data); err != nil {
		return storage.LogRecord{}, err
	}
	return rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// JSON travels as text so the same statement works for jsonb, JSON and
// NVARCHAR columns.
func jsonArg(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
