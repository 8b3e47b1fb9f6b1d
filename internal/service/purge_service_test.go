package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/internal/repository"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
)

type mockScheduleRepo struct {
	schedule  *models.PurgeSchedule
	getErr    error
	upserts   int
	runs      []int
	auditLogs []*models.AuditLog
}

func (m *mockScheduleRepo) Get(ctx context.Context) (*models.PurgeSchedule, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.schedule == nil {
		return nil, sql.ErrNoRows
	}
	copy := *m.schedule
	return &copy, nil
}

func (m *mockScheduleRepo) Upsert(ctx context.Context, schedule *models.PurgeSchedule) error {
	m.upserts++
	copy := *schedule
	m.schedule = &copy
	return nil
}

func (m *mockScheduleRepo) RecordRun(ctx context.Context, ranAt time.Time, purged int) error {
	m.runs = append(m.runs, purged)
	return nil
}

func (m *mockScheduleRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type stubPurger struct {
	cutoff time.Time
	purged []repository.PurgedCase
	err    error
}

func (s *stubPurger) PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) ([]repository.PurgedCase, error) {
	s.cutoff = cutoff
	return s.purged, s.err
}

type stubLocker struct {
	held     bool
	released bool
	taken    map[string]bool
	keys     []string
}

func (s *stubLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	s.keys = append(s.keys, key)
	if s.held || s.taken[key] {
		return nil, false, nil
	}
	if s.taken == nil {
		s.taken = map[string]bool{}
	}
	s.taken[key] = true
	return func(context.Context) {
		s.released = true
		delete(s.taken, key)
	}, true, nil
}

type stubSubmitter struct {
	jobs []interface{}
}

func (s *stubSubmitter) Submit(jobType string, payload interface{}) (string, error) {
	s.jobs = append(s.jobs, payload)
	return "job-1", nil
}

type stubPurgeRecorder struct {
	outcomes []string
	purged   int
}

func (s *stubPurgeRecorder) RecordPurgeRun(outcome string, purged int) {
	s.outcomes = append(s.outcomes, outcome)
	s.purged += purged
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func newTestPurgeService(repo *mockScheduleRepo, purger *stubPurger, locker *stubLocker, files fileRemover, notifier jobSubmitter, recorder purgeRecorder) *PurgeService {
	svc := NewPurgeService(repo, purger, files, locker, nil, recorder, notifier, nil, zap.NewNop(), PurgeServiceConfig{
		Enabled:      true,
		Location:     time.UTC,
		NotifyAdmins: true,
	})
	svc.now = func() time.Time { return time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestCronSpec(t *testing.T) {
	cases := []struct {
		name     string
		schedule models.PurgeSchedule
		want     string
	}{
		{"daily", models.PurgeSchedule{ScheduleType: models.ScheduleDaily, Time: "02:30"}, "30 2 * * *"},
		{"weekly", models.PurgeSchedule{ScheduleType: models.ScheduleWeekly, Time: "23:05", DayOfWeek: intPtr(0)}, "5 23 * * 0"},
		{"monthly", models.PurgeSchedule{ScheduleType: models.ScheduleMonthly, Time: "00:00", DayOfMonth: intPtr(28)}, "0 0 28 * *"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := CronSpec(tc.schedule)
			require.NoError(t, err)
			assert.Equal(t, tc.want, spec)
		})
	}

	_, err := CronSpec(models.PurgeSchedule{ScheduleType: models.ScheduleWeekly, Time: "02:30"})
	assert.Error(t, err)
	_, err = CronSpec(models.PurgeSchedule{ScheduleType: models.ScheduleDaily, Time: "24:00"})
	assert.Error(t, err)
}

func TestPurgeCutoff(t *testing.T) {
	firedAt := time.Date(2024, 3, 31, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 30, 2, 0, 0, 0, time.UTC), PurgeCutoff(models.ScheduleDaily, firedAt))
	assert.Equal(t, time.Date(2024, 3, 24, 2, 0, 0, 0, time.UTC), PurgeCutoff(models.ScheduleWeekly, firedAt))

	monthly := time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 15, 2, 0, 0, 0, time.UTC), PurgeCutoff(models.ScheduleMonthly, monthly))
}

func TestPurgeServiceConfigureActivatesSchedule(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := newTestPurgeService(repo, &stubPurger{}, &stubLocker{}, nil, nil, nil)

	resp, err := svc.Configure(context.Background(), dto.ConfigureAutoDeleteRequest{
		ScheduleType: "Weekly",
		DayOfWeek:    intPtr(1),
		DayOfMonth:   intPtr(10),
		Time:         "02:00",
	}, "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, resp.Active)
	require.NotNil(t, resp.NextRunAt)
	assert.Equal(t, time.Date(2024, 5, 20, 2, 0, 0, 0, time.UTC), *resp.NextRunAt)
	assert.Equal(t, models.ScheduleWeekly, resp.Config.ScheduleType)
	assert.Nil(t, resp.Config.DayOfMonth)
	assert.True(t, resp.Config.Enabled)
	assert.Equal(t, 1, repo.upserts)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionPurgeConfigure, repo.auditLogs[0].Action)
	assert.Len(t, svc.cron.Entries(), 1)

	again, err := svc.Configure(context.Background(), dto.ConfigureAutoDeleteRequest{ScheduleType: "daily", Time: "03:15"}, "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 16, 3, 15, 0, 0, time.UTC), *again.NextRunAt)
	assert.Len(t, svc.cron.Entries(), 1)
}

func TestPurgeServiceConfigureDisabled(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := newTestPurgeService(repo, &stubPurger{}, &stubLocker{}, nil, nil, nil)

	resp, err := svc.Configure(context.Background(), dto.ConfigureAutoDeleteRequest{ScheduleType: "daily", Time: "02:00", Enabled: boolPtr(false)}, "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.False(t, resp.Active)
	assert.Nil(t, resp.NextRunAt)
	assert.False(t, resp.Config.Enabled)
	assert.Empty(t, svc.cron.Entries())
}

func TestPurgeServiceConfigureValidation(t *testing.T) {
	repo := &mockScheduleRepo{}
	svc := newTestPurgeService(repo, &stubPurger{}, &stubLocker{}, nil, nil, nil)

	_, err := svc.Configure(context.Background(), dto.ConfigureAutoDeleteRequest{ScheduleType: "weekly", Time: "02:00"}, "admin-1", models.RequestMeta{})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Contains(t, appErr.Fields, "dayOfWeek")

	_, err = svc.Configure(context.Background(), dto.ConfigureAutoDeleteRequest{ScheduleType: "hourly", Time: "2pm"}, "admin-1", models.RequestMeta{})
	appErr = requireAppError(t, err, appErrors.ErrValidation)
	assert.Contains(t, appErr.Fields, "scheduleType")
	assert.Contains(t, appErr.Fields, "time")
	assert.Zero(t, repo.upserts)
}

func TestPurgeServiceGetConfigUnset(t *testing.T) {
	svc := newTestPurgeService(&mockScheduleRepo{}, &stubPurger{}, &stubLocker{}, nil, nil, nil)

	resp, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp.Config)
	assert.False(t, resp.Active)
}

func TestPurgeServiceStartRegistersStoredSchedule(t *testing.T) {
	repo := &mockScheduleRepo{schedule: &models.PurgeSchedule{ScheduleType: models.ScheduleMonthly, DayOfMonth: intPtr(1), Time: "01:00", Enabled: true}}
	svc := newTestPurgeService(repo, &stubPurger{}, &stubLocker{}, nil, nil, nil)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	resp, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Active)
	assert.Equal(t, time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC), *resp.NextRunAt)
}

func TestPurgeServiceRunOncePurgesAndNotifies(t *testing.T) {
	repo := &mockScheduleRepo{}
	purger := &stubPurger{purged: []repository.PurgedCase{
		{ID: "c1", DocketNo: "DOC-1", IndexCards: "index-cards/a.png"},
		{ID: "c2", DocketNo: "DOC-2", IndexCards: models.NoIndexCard},
	}}
	locker := &stubLocker{}
	files := &memoryStorage{}
	notifier := &stubSubmitter{}
	recorder := &stubPurgeRecorder{}
	svc := newTestPurgeService(repo, purger, locker, files, notifier, recorder)

	firedAt := time.Date(2024, 5, 15, 2, 0, 0, 0, time.UTC)
	run, err := svc.RunOnce(context.Background(), models.ScheduleDaily, firedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Purged)
	assert.Equal(t, []string{"DOC-1", "DOC-2"}, run.DocketNos)
	assert.Equal(t, time.Date(2024, 5, 14, 2, 0, 0, 0, time.UTC), purger.cutoff)
	assert.Equal(t, []string{"index-cards/a.png"}, files.deleted)
	assert.Equal(t, []int{2}, repo.runs)
	assert.False(t, locker.released)
	assert.Equal(t, []string{"docket:purge:lock:202405150200"}, locker.keys)
	require.Len(t, notifier.jobs, 1)
	assert.Equal(t, []string{"success"}, recorder.outcomes)
	assert.Equal(t, 2, recorder.purged)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionPurgeRun, repo.auditLogs[0].Action)
}

func TestPurgeServiceRunOnceNothingToPurge(t *testing.T) {
	notifier := &stubSubmitter{}
	svc := newTestPurgeService(&mockScheduleRepo{}, &stubPurger{}, &stubLocker{}, nil, notifier, nil)

	run, err := svc.RunOnce(context.Background(), models.ScheduleWeekly, time.Date(2024, 5, 15, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, run.Purged)
	assert.Empty(t, notifier.jobs)
}

func TestPurgeServiceRunOnceSkipsWhenLocked(t *testing.T) {
	purger := &stubPurger{}
	recorder := &stubPurgeRecorder{}
	svc := newTestPurgeService(&mockScheduleRepo{}, purger, &stubLocker{held: true}, nil, nil, recorder)

	run, err := svc.RunOnce(context.Background(), models.ScheduleDaily, time.Date(2024, 5, 15, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, run.Skipped)
	assert.True(t, purger.cutoff.IsZero())
	assert.Equal(t, []string{"skipped"}, recorder.outcomes)
}

func TestPurgeServiceRunOnceOncePerFire(t *testing.T) {
	purger := &stubPurger{purged: []repository.PurgedCase{{ID: "c1", DocketNo: "DOC-1"}}}
	recorder := &stubPurgeRecorder{}
	locker := &stubLocker{}
	svc := newTestPurgeService(&mockScheduleRepo{}, purger, locker, nil, nil, recorder)
	ctx := context.Background()
	firedAt := time.Date(2024, 5, 15, 2, 0, 0, 0, time.UTC)

	first, err := svc.RunOnce(ctx, models.ScheduleDaily, firedAt)
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	again, err := svc.RunOnce(ctx, models.ScheduleDaily, firedAt.Add(30*time.Second).Truncate(time.Minute))
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	next, err := svc.RunOnce(ctx, models.ScheduleDaily, firedAt.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, next.Skipped)
	assert.Equal(t, []string{"success", "skipped", "success"}, recorder.outcomes)
}

func TestPurgeServiceRunOnceDatabaseDown(t *testing.T) {
	purger := &stubPurger{err: errors.New("connection refused")}
	recorder := &stubPurgeRecorder{}
	locker := &stubLocker{}
	svc := newTestPurgeService(&mockScheduleRepo{}, purger, locker, nil, nil, recorder)

	_, err := svc.RunOnce(context.Background(), models.ScheduleDaily, time.Date(2024, 5, 15, 2, 0, 0, 0, time.UTC))
	requireAppError(t, err, appErrors.ErrDatabaseUnavailable)
	assert.True(t, locker.released)
	assert.Equal(t, []string{"failed"}, recorder.outcomes)
}
