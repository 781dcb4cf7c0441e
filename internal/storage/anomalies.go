package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const anomalyColumns = `id, type, project_id, detected_at, current_hour_count, average_24h_count, threshold`

func scanAnomaly(row pgx.Row) (Anomaly, error) {
	var a Anomaly
	if err := row.Scan(&a.ID, &a.Type, &a.ProjectID, &a.DetectedAt, &a.CurrentHourCount, &a.Average24hCount, &a.Threshold); err != nil {
		return Anomaly{}, err
	}
	return a, nil
}

func (r *Repository) CreateAnomaly(ctx context.Context, a Anomaly) (Anomaly, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.DetectedAt = a.DetectedAt.UTC()
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO anomalies (`+anomalyColumns+`, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())`,
		a.ID, a.Type, a.ProjectID, a.DetectedAt, a.CurrentHourCount, a.Average24hCount, a.Threshold,
	)
	if err != nil {
		return Anomaly{}, err
	}
	return a, nil
}

func (r *Repository) GetAnomaly(ctx context.Context, id string) (Anomaly, error) {
	a, err := scanAnomaly(r.Store.Pool.QueryRow(ctx, `SELECT `+anomalyColumns+` FROM anomalies WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Anomaly{}, ErrNotFound
	}
	return a, err
}

func (r *Repository) UpdateAnomaly(ctx context.Context, id string, patch AnomalyPatch) (Anomaly, error) {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return Anomaly{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	current, err := scanAnomaly(tx.QueryRow(ctx, `SELECT `+anomalyColumns+` FROM anomalies WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Anomaly{}, ErrNotFound
	}
	if err != nil {
		return Anomaly{}, err
	}
	updated := patch.Apply(current)
	_, err = tx.Exec(ctx, `
		UPDATE anomalies
		SET type=$1, project_id=$2, detected_at=$3, current_hour_count=$4, average_24h_count=$5, threshold=$6, updated_at=now()
		WHERE id=$7`,
		updated.Type, updated.ProjectID, updated.DetectedAt.UTC(), updated.CurrentHourCount, updated.Average24hCount, updated.Threshold, id,
	)
	if err != nil {
		return Anomaly{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Anomaly{}, err
	}
	return updated, nil
}

func (r *Repository) ListAnomalies(ctx context.Context) ([]Anomaly, error) {
	rows, err := r.Store.Pool.Query(ctx, `SELECT `+anomalyColumns+` FROM anomalies ORDER BY detected_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []Anomaly{}
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}
