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

	"github.com/noah-isme/docket-api/internal/models"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
)

type fakeCaseStats struct {
	counts        models.CaseCounts
	countsErr     error
	filed         []models.CaseSummary
	resolved      []models.CaseSummary
	countCalls    int
	limitReceived int
}

func (f *fakeCaseStats) Counts(ctx context.Context) (*models.CaseCounts, error) {
	f.countCalls++
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	counts := f.counts
	return &counts, nil
}

func (f *fakeCaseStats) RecentlyFiled(ctx context.Context, limit int) ([]models.CaseSummary, error) {
	f.limitReceived = limit
	return f.filed, nil
}

func (f *fakeCaseStats) RecentlyResolved(ctx context.Context, limit int) ([]models.CaseSummary, error) {
	f.limitReceived = limit
	return f.resolved, nil
}

type fakeAccountStats struct {
	counts []models.RoleCount
}

func (f *fakeAccountStats) CountByRole(ctx context.Context) ([]models.RoleCount, error) {
	return f.counts, nil
}

type fakeScheduleReader struct {
	schedule *models.PurgeSchedule
}

func (f *fakeScheduleReader) Get(ctx context.Context) (*models.PurgeSchedule, error) {
	if f.schedule == nil {
		return nil, sql.ErrNoRows
	}
	return f.schedule, nil
}

type fakeSnapshotter struct{}

func (fakeSnapshotter) Snapshot() models.SystemMetrics {
	return models.SystemMetrics{RequestsTotal: 42, Goroutines: 7}
}

func newDashboardFixture(cache dashboardCache) (*DashboardService, *fakeCaseStats) {
	cases := &fakeCaseStats{
		counts:   models.CaseCounts{Active: 5, Terminated: 2, Pending: 3, Dismissed: 1, Convicted: 1},
		filed:    []models.CaseSummary{{DocketNo: "DOC-9"}},
		resolved: []models.CaseSummary{{DocketNo: "DOC-3"}},
	}
	svc := NewDashboardService(DashboardServiceParams{
		Cases:     cases,
		Accounts:  &fakeAccountStats{counts: []models.RoleCount{{Role: models.RoleAdmin, Total: 1, Active: 1}}},
		Schedules: &fakeScheduleReader{schedule: &models.PurgeSchedule{ScheduleType: models.ScheduleDaily, Time: "02:00", Enabled: true}},
		Metrics:   fakeSnapshotter{},
		Cache:     cache,
		Logger:    zap.NewNop(),
	})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return svc, cases
}

func TestDashboardServiceAdmin(t *testing.T) {
	svc, _ := newDashboardFixture(nil)

	summary, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 5, summary.Cases.Active)
	assert.Equal(t, 2, summary.Cases.Terminated)
	require.Len(t, summary.Accounts, 1)
	require.NotNil(t, summary.PurgeSchedule)
	assert.Equal(t, models.ScheduleDaily, summary.PurgeSchedule.ScheduleType)
	assert.Equal(t, uint64(42), summary.System.RequestsTotal)
}

func TestDashboardServiceClerkAndStaff(t *testing.T) {
	svc, cases := newDashboardFixture(nil)

	clerk, _, err := svc.Clerk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, clerk.PendingCount)
	assert.Equal(t, "DOC-9", clerk.RecentlyFiled[0].DocketNo)
	assert.Equal(t, 10, cases.limitReceived)

	staff, _, err := svc.Staff(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DOC-3", staff.RecentlyResolved[0].DocketNo)
	assert.Equal(t, 1, staff.Cases.Convicted)
}

func TestDashboardServiceUsesCache(t *testing.T) {
	cache := newMemoryCache()
	svc, cases := newDashboardFixture(cache)

	_, hit, err := svc.Clerk(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	again, hit, err := svc.Clerk(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, again.PendingCount)
	assert.Equal(t, 1, cases.countCalls)

	admin, _, err := svc.Admin(context.Background())
	require.NoError(t, err)
	admin, hit, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, uint64(42), admin.System.RequestsTotal)
}

func TestDashboardServiceForRole(t *testing.T) {
	svc, _ := newDashboardFixture(nil)

	payload, _, err := svc.ForRole(context.Background(), models.RoleStaff)
	require.NoError(t, err)
	assert.IsType(t, &models.StaffDashboard{}, payload)

	_, _, err = svc.ForRole(context.Background(), models.UserRole("Guest"))
	requireAppError(t, err, appErrors.ErrForbidden)
}

func TestDashboardServiceDatabaseDown(t *testing.T) {
	svc, cases := newDashboardFixture(nil)
	cases.countsErr = errors.New("dial tcp: connection refused")

	_, _, err := svc.Staff(context.Background())
	requireAppError(t, err, appErrors.ErrDatabaseUnavailable)
}
