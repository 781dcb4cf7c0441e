package logstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"logwatch-backend/internal/storage"
)

func TestDialectFor(t *testing.T) {
	cases := map[string]string{"postgres": "postgres", "PostgreSQL": "postgres", "mysql": "mysql", "sqlserver": "mssql", "mssql": "mssql"}
	for input, expected := range cases {
		d, err := dialectFor(input)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", input, err)
		}
		if d.name != expected {
			t.Fatalf("%s: expected %s got %s", input, expected, d.name)
		}
	}
	if _, err := dialectFor("oracle"); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	if _, err := dialectFor(""); err == nil {
		t.Fatalf("expected missing type error")
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{Host: "db", User: "u", Password: "p@ss", Database: "logs"}
	if got := mysqlDialect.dsn(cfg); got != "u:p@ss@tcp(db:3306)/logs?parseTime=true&loc=UTC&clientFoundRows=true" {
		t.Fatalf("unexpected mysql dsn: %s", got)
	}
	if got := postgresDialect.dsn(cfg); got != "host=db port=5432 user=u password=p@ss dbname=logs sslmode=disable" {
		t.Fatalf("unexpected postgres dsn: %s", got)
	}
	if got := mssqlDialect.dsn(cfg); got != "sqlserver://u:p%40ss@db:1433?database=logs&encrypt=true" {
		t.Fatalf("unexpected mssql dsn: %s", got)
	}
	cfg.SSLMode = "disable"
	if got := mysqlDialect.dsn(cfg); !strings.HasSuffix(got, "&tls=false") {
		t.Fatalf("expected tls disabled: %s", got)
	}
	if got := mssqlDialect.dsn(cfg); !strings.HasSuffix(got, "encrypt=disable") {
		t.Fatalf("expected encrypt disabled: %s", got)
	}
}

func TestQuoteQualified(t *testing.T) {
	quoted, err := quoteQualified("dbo.logs", 2, mssqlDialect.quote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quoted != "[dbo].[logs]" {
		t.Fatalf("unexpected quoted value: %s", quoted)
	}
	if _, err := quoteQualified("a.b.c", 2, mssqlDialect.quote); err == nil {
		t.Fatalf("expected error for too many segments")
	}
	if _, err := quoteQualified("logs; DROP TABLE x", 2, mssqlDialect.quote); err == nil {
		t.Fatalf("expected error for invalid identifier")
	}
}

func TestFindQueryPerDialect(t *testing.T) {
	filter := storage.LogFilter{Type: storage.LogTypeError, Since: time.Now()}
	cases := []struct {
		d        dialect
		contains []string
	}{
		{postgresDialect, []string{`FROM "logs" WHERE type = $1 AND ts >= $2 ORDER BY ts DESC LIMIT $3`, `"severity_score"`}},
		{mysqlDialect, []string{"FROM `logs` WHERE type = ? AND ts >= ? ORDER BY ts DESC LIMIT ?"}},
		{mssqlDialect, []string{"FROM [logs] WHERE type = @p1 AND ts >= @p2 ORDER BY ts DESC OFFSET 0 ROWS FETCH NEXT @p3 ROWS ONLY"}},
	}
	for _, tc := range cases {
		store, err := newStore(nil, tc.d, "")
		if err != nil {
			t.Fatalf("%s: %v", tc.d.name, err)
		}
		query, args := store.findQuery(filter, storage.OrderTimestampDesc, 10, 0)
		for _, want := range tc.contains {
			if !strings.Contains(query, want) {
				t.Fatalf("%s: expected %q in %q", tc.d.name, want, query)
			}
		}
		if len(args) != 3 || args[2] != 10 {
			t.Fatalf("%s: unexpected args %v", tc.d.name, args)
		}
	}
}

func TestFindQueryWithoutLimit(t *testing.T) {
	store, err := newStore(nil, mssqlDialect, "dbo.app_logs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	query, args := store.findQuery(storage.LogFilter{}, storage.OrderTimestampAsc, 0, 20)
	if strings.Contains(query, "FETCH") || len(args) != 0 {
		t.Fatalf("unexpected limit in %q", query)
	}
	if !strings.Contains(query, "FROM [dbo].[app_logs] ORDER BY ts ASC") {
		t.Fatalf("unexpected query: %q", query)
	}
}

func TestFindQueryWithOffset(t *testing.T) {
	filter := storage.LogFilter{Type: storage.LogTypeError}
	cases := []struct {
		d      dialect
		suffix string
	}{
		{postgresDialect, `WHERE type = $1 ORDER BY ts DESC LIMIT $2 OFFSET $3`},
		{mysqlDialect, "WHERE type = ? ORDER BY ts DESC LIMIT ? OFFSET ?"},
		{mssqlDialect, "WHERE type = @p1 ORDER BY ts DESC OFFSET @p3 ROWS FETCH NEXT @p2 ROWS ONLY"},
	}
	for _, tc := range cases {
		store, err := newStore(nil, tc.d, "")
		if err != nil {
			t.Fatalf("%s: %v", tc.d.name, err)
		}
		query, args := store.findQuery(filter, storage.OrderTimestampDesc, 10, 30)
		if !strings.HasSuffix(query, tc.suffix) {
			t.Fatalf("%s: expected suffix %q in %q", tc.d.name, tc.suffix, query)
		}
		if len(args) != 3 || args[1] != 10 || args[2] != 30 {
			t.Fatalf("%s: unexpected args %v", tc.d.name, args)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	store, _ := newStore(nil, mssqlDialect, "")
	if got := store.placeholders(3); got != "@p1,@p2,@p3" {
		t.Fatalf("unexpected placeholders: %s", got)
	}
}

func TestStoreAgainstDatabase(t *testing.T) {
	storeType := os.Getenv("TEST_LOG_STORE_TYPE")
	host := os.Getenv("TEST_LOG_STORE_HOST")
	if storeType == "" || host == "" {
		t.Skip("TEST_LOG_STORE_TYPE or TEST_LOG_STORE_HOST not set")
	}
	store, err := New(Config{
		Type:     storeType,
		Host:     host,
		User:     os.Getenv("TEST_LOG_STORE_USER"),
		Password: os.Getenv("TEST_LOG_STORE_PASSWORD"),
		Database: os.Getenv("TEST_LOG_STORE_DATABASE"),
		SSLMode:  os.Getenv("TEST_LOG_STORE_SSLMODE"),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	project := "proj-" + uuid.NewString()
	created, err := store.CreateLog(ctx, storage.LogRecord{
		Type:        storage.LogTypeError,
		ProjectID:   project,
		Level:       storage.LevelError,
		Data:        map[string]any{"error": map[string]any{"message": "boom"}},
		Fingerprint: "boom|",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.UpdateSeverity(ctx, created.ID, 6); err != nil {
		t.Fatalf("update severity: %v", err)
	}
	if err := store.UpdateSeverity(ctx, uuid.NewString(), 6); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	count, err := store.CountLogs(ctx, storage.LogFilter{ProjectID: project, Since: time.Now().Add(-time.Minute)})
	if err != nil || count != 1 {
		t.Fatalf("expected count 1, got %d (%v)", count, err)
	}
	logs, err := store.FindLogs(ctx, storage.LogFilter{ProjectID: project}, storage.OrderTimestampDesc, 5, 0)
	if err != nil || len(logs) != 1 || logs[0].SeverityScore != 6 {
		t.Fatalf("unexpected logs %+v (%v)", logs, err)
	}
}
