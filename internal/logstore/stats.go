package logstore

import (
	"context"
	"fmt"
	"time"

	"logwatch-backend/internal/storage"
)

func (s *Store) groupedQuery(since time.Time, projectID string, limit int) (string, []any) {
	where, args := storage.BuildLogWhere(storage.LogFilter{Type: storage.LogTypeError, ProjectID: projectID, Since: since}, s.dialect.placeholder)
	fp := s.dialect.quote("fingerprint")
	ts := s.dialect.quote("ts")
	query := fmt.Sprintf("SELECT %s, COUNT(*), MIN(%s), MAX(%s) FROM %s%s AND %s IS NOT NULL GROUP BY %s ORDER BY COUNT(*) DESC",
		fp, ts, ts, s.table, where, fp, fp)
	args = append(args, limit)
	return query + s.dialect.limit(len(args)), args
}

func (s *Store) GroupedErrors(ctx context.Context, since time.Time, projectID string, limit int) ([]storage.ErrorGroup, error) {
	query, args := s.groupedQuery(since, projectID, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group %s errors: %w", s.dialect.name, err)
	}
	defer rows.Close()
	results := []storage.ErrorGroup{}
	for rows.Next() {
		var g storage.ErrorGroup
		if err := rows.Scan(&g.Fingerprint, &g.Count, &g.FirstOccurrence, &g.LastOccurrence); err != nil {
			return nil, fmt.Errorf("scan %s error group: %w", s.dialect.name, err)
		}
		g.FirstOccurrence = g.FirstOccurrence.UTC()
		g.LastOccurrence = g.LastOccurrence.UTC()
		results = append(results, g)
	}
	return results, rows.Err()
}

// ErrorsPerHour buckets in Go because hour truncation differs per dialect.
func (s *Store) ErrorsPerHour(ctx context.Context, since time.Time, projectID string) ([]storage.HourlyCount, error) {
	where, args := storage.BuildLogWhere(storage.LogFilter{Type: storage.LogTypeError, ProjectID: projectID, Since: since}, s.dialect.placeholder)
	ts := s.dialect.quote("ts")
	rows, err := s.db.QueryContext(ctx, "SELECT "+ts+" FROM "+s.table+where+" ORDER BY "+ts+" ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("load %s error timestamps: %w", s.dialect.name, err)
	}
	defer rows.Close()
	var stamps []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("scan %s timestamp: %w", s.dialect.name, err)
		}
		stamps = append(stamps, at)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hourlyCounts(stamps), nil
}

// hourlyCounts expects ascending timestamps.
func hourlyCounts(stamps []time.Time) []storage.HourlyCount {
	results := []storage.HourlyCount{}
	for _, at := range stamps {
		hour := at.UTC().Truncate(time.Hour)
		if n := len(results); n > 0 && results[n-1].Hour.Equal(hour) {
			results[n-1].Count++
			continue
		}
		results = append(results, storage.HourlyCount{Hour: hour, Count: 1})
	}
	return results
}
