package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docket-api/internal/models"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
)

type caseStatsRepository interface {
	Counts(ctx context.Context) (*models.CaseCounts, error)
	RecentlyFiled(ctx context.Context, limit int) ([]models.CaseSummary, error)
	RecentlyResolved(ctx context.Context, limit int) ([]models.CaseSummary, error)
}

type accountStatsRepository interface {
	CountByRole(ctx context.Context) ([]models.RoleCount, error)
}

type scheduleReader interface {
	Get(ctx context.Context) (*models.PurgeSchedule, error)
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	RecentLimit int
}

// DashboardService composes the per-role landing page summaries.
type DashboardService struct {
	cases     caseStatsRepository
	accounts  accountStatsRepository
	schedules scheduleReader
	metrics   metricsSnapshotter
	cache     dashboardCache
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Cases     caseStatsRepository
	Accounts  accountStatsRepository
	Schedules scheduleReader
	Metrics   metricsSnapshotter
	Cache     dashboardCache
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 10
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		cases:     params.Cases,
		accounts:  params.Accounts,
		schedules: params.Schedules,
		metrics:   params.Metrics,
		cache:     params.Cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
	}
}

// ForRole returns the dashboard matching role.
func (s *DashboardService) ForRole(ctx context.Context, role models.UserRole) (interface{}, bool, error) {
	switch role {
	case models.RoleAdmin:
		return s.Admin(ctx)
	case models.RoleClerk:
		return s.Clerk(ctx)
	case models.RoleStaff:
		return s.Staff(ctx)
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "no dashboard for role")
	}
}

// Admin returns totals, account counts, the purge schedule and a live system
// metrics snapshot. The metrics are never served from cache.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, bool, error) {
	const key = "dashboard:admin"
	var summary models.AdminDashboard
	hit := s.cache != nil && s.cache.Get(ctx, key, &summary)
	if !hit {
		counts, err := s.counts(ctx)
		if err != nil {
			return nil, false, err
		}
		accounts, err := s.accounts.CountByRole(ctx)
		if err != nil {
			return nil, false, repoError(err, "failed to count accounts")
		}
		if accounts == nil {
			accounts = []models.RoleCount{}
		}
		schedule, err := s.schedules.Get(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, false, repoError(err, "failed to load purge schedule")
		}
		summary = models.AdminDashboard{Cases: *counts, Accounts: accounts, PurgeSchedule: schedule, GeneratedAt: s.now()}
		s.persist(ctx, key, summary)
	}
	if s.metrics != nil {
		summary.System = s.metrics.Snapshot()
	}
	return &summary, hit, nil
}

// Clerk returns totals, the pending count and the most recently filed cases.
func (s *DashboardService) Clerk(ctx context.Context) (*models.ClerkDashboard, bool, error) {
	const key = "dashboard:clerk"
	var summary models.ClerkDashboard
	if s.cache != nil && s.cache.Get(ctx, key, &summary) {
		return &summary, true, nil
	}
	counts, err := s.counts(ctx)
	if err != nil {
		return nil, false, err
	}
	recent, err := s.cases.RecentlyFiled(ctx, s.cfg.RecentLimit)
	if err != nil {
		return nil, false, repoError(err, "failed to load recently filed cases")
	}
	if recent == nil {
		recent = []models.CaseSummary{}
	}
	summary = models.ClerkDashboard{Cases: *counts, PendingCount: counts.Pending, RecentlyFiled: recent, GeneratedAt: s.now()}
	s.persist(ctx, key, summary)
	return &summary, false, nil
}

// Staff returns totals and the most recently resolved cases.
func (s *DashboardService) Staff(ctx context.Context) (*models.StaffDashboard, bool, error) {
	const key = "dashboard:staff"
	var summary models.StaffDashboard
	if s.cache != nil && s.cache.Get(ctx, key, &summary) {
		return &summary, true, nil
	}
	counts, err := s.counts(ctx)
	if err != nil {
		return nil, false, err
	}
	recent, err := s.cases.RecentlyResolved(ctx, s.cfg.RecentLimit)
	if err != nil {
		return nil, false, repoError(err, "failed to load recently resolved cases")
	}
	if recent == nil {
		recent = []models.CaseSummary{}
	}
	summary = models.StaffDashboard{Cases: *counts, RecentlyResolved: recent, GeneratedAt: s.now()}
	s.persist(ctx, key, summary)
	return &summary, false, nil
}

func (s *DashboardService) counts(ctx context.Context) (*models.CaseCounts, error) {
	counts, err := s.cases.Counts(ctx)
	if err != nil {
		return nil, repoError(err, "failed to count cases")
	}
	return counts, nil
}

func (s *DashboardService) persist(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, key, value, s.cfg.CacheTTL)
}
