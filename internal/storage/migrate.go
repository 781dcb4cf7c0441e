package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name text PRIMARY KEY,
	applied_at timestamptz NOT NULL DEFAULT now()
)`

// Fixed key for pg_advisory_xact_lock so concurrent migrate runs serialize.
const migrationLockKey = 7_303_917

// MigrationFiles lists the top-level *.sql files of dir in lexical order.
// Subdirectories such as migrations/logstore are not included.
func MigrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Migrate applies every file from MigrationFiles that is not yet recorded in
// schema_migrations. Each file runs in its own transaction together with its
// bookkeeping row. It returns the names applied by this call.
func (s *Store) Migrate(ctx context.Context, dir string) ([]string, error) {
	if _, err := s.Pool.Exec(ctx, migrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	files, err := MigrationFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	applied := []string{}
	for _, file := range files {
		name := filepath.Base(file)
		ok, err := s.applyMigration(ctx, name, file)
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", name, err)
		}
		if ok {
			applied = append(applied, name)
		}
	}
	return applied, nil
}

func (s *Store) applyMigration(ctx context.Context, name, file string) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name=$1)`, name).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
