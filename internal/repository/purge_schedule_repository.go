package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docket-api/internal/models"
)

const purgeScheduleID = 1

// PurgeScheduleRepository persists the single auto-purge configuration row.
type PurgeScheduleRepository struct {
	db *sqlx.DB
}

// NewPurgeScheduleRepository constructs the repository.
func NewPurgeScheduleRepository(db *sqlx.DB) *PurgeScheduleRepository {
	return &PurgeScheduleRepository{db: db}
}

// Get returns the stored schedule or sql.ErrNoRows when none was configured.
func (r *PurgeScheduleRepository) Get(ctx context.Context) (*models.PurgeSchedule, error) {
	const query = `SELECT id, schedule_type, day_of_week, day_of_month, run_time, enabled, last_run_at, last_purged, updated_by, updated_at FROM purge_schedule WHERE id = $1`
	var schedule models.PurgeSchedule
	if err := r.db.GetContext(ctx, &schedule, query, purgeScheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get purge schedule: %w", err)
	}
	return &schedule, nil
}

// Upsert stores the schedule, keeping run history intact.
func (r *PurgeScheduleRepository) Upsert(ctx context.Context, schedule *models.PurgeSchedule) error {
	schedule.ID = purgeScheduleID
	schedule.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO purge_schedule (id, schedule_type, day_of_week, day_of_month, run_time, enabled, last_purged, updated_by, updated_at)
		VALUES (:id, :schedule_type, :day_of_week, :day_of_month, :run_time, :enabled, :last_purged, :updated_by, :updated_at)
		ON CONFLICT (id) DO UPDATE SET schedule_type = EXCLUDED.schedule_type, day_of_week = EXCLUDED.day_of_week, day_of_month = EXCLUDED.day_of_month, run_time = EXCLUDED.run_time, enabled = EXCLUDED.enabled, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("upsert purge schedule: %w", err)
	}
	return nil
}

// RecordRun stores the outcome of the latest run.
func (r *PurgeScheduleRepository) RecordRun(ctx context.Context, ranAt time.Time, purged int) error {
	const query = `UPDATE purge_schedule SET last_run_at = $2, last_purged = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, purgeScheduleID, ranAt, purged); err != nil {
		return fmt.Errorf("record purge run: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *PurgeScheduleRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, r.db, log)
}
