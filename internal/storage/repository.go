package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

const ruleColumns = `id, type, level, project_id, threshold_count, interval_minutes, is_active, last_evaluated_at, notify_channel, notify_target, created_at, updated_at`

func scanRule(row pgx.Row) (AlertRule, error) {
	var rec AlertRule
	var level *string
	if err := row.Scan(&rec.ID, &rec.Type, &level, &rec.ProjectID, &rec.ThresholdCount, &rec.IntervalMinutes, &rec.IsActive, &rec.LastEvaluatedAt, &rec.NotifyChannel, &rec.NotifyTarget, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return AlertRule{}, err
	}
	if level != nil {
		rec.Level = *level
	}
	return rec, nil
}

func (r *Repository) listRules(ctx context.Context, query string, args ...any) ([]AlertRule, error) {
	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []AlertRule{}
	for rows.Next() {
		rec, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (r *Repository) ListRules(ctx context.Context) ([]AlertRule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM alert_rules ORDER BY created_at DESC`)
}

func (r *Repository) ListActiveRules(ctx context.Context) ([]AlertRule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM alert_rules WHERE is_active = true ORDER BY created_at ASC`)
}

func (r *Repository) GetRule(ctx context.Context, id string) (AlertRule, error) {
	rec, err := scanRule(r.Store.Pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM alert_rules WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return AlertRule{}, ErrNotFound
	}
	return rec, err
}

func (r *Repository) CreateRule(ctx context.Context, rec AlertRule) (AlertRule, error) {
	rec.ID = uuid.NewString()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO alert_rules (`+ruleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rec.ID, rec.Type, nullString(rec.Level), rec.ProjectID, rec.ThresholdCount, rec.IntervalMinutes, rec.IsActive, rec.LastEvaluatedAt, rec.NotifyChannel, rec.NotifyTarget, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return AlertRule{}, err
	}
	return rec, nil
}

func (r *Repository) UpdateRule(ctx context.Context, rec AlertRule) (AlertRule, error) {
	rec.UpdatedAt = time.Now().UTC()
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE alert_rules
		SET type=$1, level=$2, project_id=$3, threshold_count=$4, interval_minutes=$5, is_active=$6, notify_channel=$7, notify_target=$8, updated_at=$9
		WHERE id=$10`,
		rec.Type, nullString(rec.Level), rec.ProjectID, rec.ThresholdCount, rec.IntervalMinutes, rec.IsActive, rec.NotifyChannel, rec.NotifyTarget, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return AlertRule{}, err
	}
	if tag.RowsAffected() == 0 {
		return AlertRule{}, ErrNotFound
	}
	return r.GetRule(ctx, rec.ID)
}

func (r *Repository) DeleteRule(ctx context.Context, id string) error {
	tag, err := r.Store.Pool.Exec(ctx, `DELETE FROM alert_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkRuleEvaluated(ctx context.Context, id string, at time.Time) error {
	_, err := r.Store.Pool.Exec(ctx, `UPDATE alert_rules SET last_evaluated_at=$1 WHERE id=$2`, at.UTC(), id)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
