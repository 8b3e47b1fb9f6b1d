package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docket-api/internal/models"
)

func TestPurgeScheduleGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPurgeScheduleRepository(db)

	now := time.Now()
	mock.ExpectQuery("FROM purge_schedule WHERE id = \\$1").
		WithArgs(purgeScheduleID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_type", "day_of_week", "day_of_month", "run_time", "enabled", "last_run_at", "last_purged", "updated_by", "updated_at"}).
			AddRow(1, "weekly", 1, nil, "02:00", true, nil, 0, "admin-1", now))

	schedule, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleWeekly, schedule.ScheduleType)
	require.NotNil(t, schedule.DayOfWeek)
	assert.Equal(t, 1, *schedule.DayOfWeek)
	assert.Nil(t, schedule.DayOfMonth)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeScheduleGetMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPurgeScheduleRepository(db)

	mock.ExpectQuery("FROM purge_schedule").WillReturnError(sql.ErrNoRows)
	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPurgeScheduleUpsertAndRecord(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPurgeScheduleRepository(db)

	mock.ExpectExec("INSERT INTO purge_schedule .* ON CONFLICT \\(id\\) DO UPDATE").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purge_schedule SET last_run_at = $2, last_purged = $3 WHERE id = $1")).
		WithArgs(purgeScheduleID, sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 1))

	schedule := &models.PurgeSchedule{ScheduleType: models.ScheduleDaily, Time: "02:00", Enabled: true}
	require.NoError(t, repo.Upsert(context.Background(), schedule))
	assert.Equal(t, purgeScheduleID, schedule.ID)
	require.NoError(t, repo.RecordRun(context.Background(), time.Now(), 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}
