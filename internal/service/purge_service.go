package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/internal/repository"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/validation"
)

const (
	purgeLockKey = "docket:purge:lock"
	// JobTypePurgeSummary is the queue job type for purge notifications.
	JobTypePurgeSummary = "purge_summary"
)

type purgeScheduleStore interface {
	Get(ctx context.Context) (*models.PurgeSchedule, error)
	Upsert(ctx context.Context, schedule *models.PurgeSchedule) error
	RecordRun(ctx context.Context, ranAt time.Time, purged int) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type casePurger interface {
	PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) ([]repository.PurgedCase, error)
}

type fileRemover interface {
	Delete(name string) error
}

type jobLocker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error)
}

type purgeRecorder interface {
	RecordPurgeRun(outcome string, purged int)
}

type jobSubmitter interface {
	Submit(jobType string, payload interface{}) (string, error)
}

// PurgeServiceConfig tunes the auto-purge scheduler.
type PurgeServiceConfig struct {
	Enabled      bool
	Location     *time.Location
	LockTTL      time.Duration
	RunTimeout   time.Duration
	NotifyAdmins bool
}

// PurgeService owns the auto-purge schedule. It persists the configuration,
// keeps exactly one cron entry registered for it, and on each fire removes
// terminated cases older than one schedule period.
type PurgeService struct {
	schedules purgeScheduleStore
	cases     casePurger
	files     fileRemover
	locker    jobLocker
	cache     cacheInvalidator
	metrics   purgeRecorder
	notifier  jobSubmitter
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PurgeServiceConfig

	cron    *cron.Cron
	mu      sync.Mutex
	entryID cron.EntryID
	current cron.Schedule
	now     func() time.Time
}

// NewPurgeService constructs the scheduler. notifier may be nil to disable
// purge summary emails.
func NewPurgeService(schedules purgeScheduleStore, cases casePurger, files fileRemover, locker jobLocker, cache cacheInvalidator, metrics purgeRecorder, notifier jobSubmitter, validate *validator.Validate, logger *zap.Logger, cfg PurgeServiceConfig) *PurgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	cronLog := cronLogger{logger: logger.Named("purge-cron")}
	return &PurgeService{
		schedules: schedules,
		cases:     cases,
		files:     files,
		locker:    locker,
		cache:     cache,
		metrics:   metrics,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		now: time.Now,
	}
}

// Start loads the persisted schedule, registers it and starts the cron loop.
func (s *PurgeService) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("auto purge disabled by configuration")
		return nil
	}
	schedule, err := s.schedules.Get(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Info("no auto purge schedule configured")
	case err != nil:
		return fmt.Errorf("load purge schedule: %w", err)
	default:
		if _, err := s.register(*schedule); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running purge to finish.
func (s *PurgeService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("auto purge scheduler stopped")
}

// GetConfig returns the stored schedule and whether it is registered. Config
// is nil when nothing has been configured yet.
func (s *PurgeService) GetConfig(ctx context.Context) (*dto.AutoDeleteConfigResponse, error) {
	schedule, err := s.schedules.Get(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.AutoDeleteConfigResponse{}, nil
		}
		return nil, repoError(err, "failed to load auto delete configuration")
	}
	return s.describe(schedule), nil
}

// Configure validates, persists and activates the schedule. The response
// reflects the scheduler state after the change.
func (s *PurgeService) Configure(ctx context.Context, req dto.ConfigureAutoDeleteRequest, actorID string, meta models.RequestMeta) (*dto.AutoDeleteConfigResponse, error) {
	req.ScheduleType = strings.ToLower(strings.TrimSpace(req.ScheduleType))
	req.Time = strings.TrimSpace(req.Time)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid auto delete configuration")
	}
	schedule := &models.PurgeSchedule{
		ScheduleType: models.ScheduleType(req.ScheduleType),
		Time:         req.Time,
		Enabled:      req.Enabled == nil || *req.Enabled,
		UpdatedBy:    stringPtr(actorID),
	}
	switch schedule.ScheduleType {
	case models.ScheduleWeekly:
		if req.DayOfWeek == nil {
			return nil, appErrors.WithFields(nil, "invalid auto delete configuration", map[string]string{"dayOfWeek": "is required for weekly schedules"})
		}
		schedule.DayOfWeek = req.DayOfWeek
	case models.ScheduleMonthly:
		if req.DayOfMonth == nil {
			return nil, appErrors.WithFields(nil, "invalid auto delete configuration", map[string]string{"dayOfMonth": "is required for monthly schedules"})
		}
		schedule.DayOfMonth = req.DayOfMonth
	}
	if _, err := CronSpec(*schedule); err != nil {
		return nil, appErrors.WithFields(err, "invalid auto delete configuration", map[string]string{"time": "must be in HH:MM format"})
	}

	previous, err := s.schedules.Get(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, repoError(err, "failed to load auto delete configuration")
	}
	if previous != nil {
		schedule.LastRunAt = previous.LastRunAt
		schedule.LastPurged = previous.LastPurged
	}
	if err := s.schedules.Upsert(ctx, schedule); err != nil {
		return nil, repoError(err, "failed to save auto delete configuration")
	}
	if _, err := s.register(*schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate auto delete schedule")
	}

	entry := &models.AuditLog{
		UserID:    stringPtr(actorID),
		Action:    models.AuditActionPurgeConfigure,
		Resource:  models.AuditResourcePurge,
		NewValues: auditJSON(schedule),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if previous != nil {
		entry.OldValues = auditJSON(previous)
	}
	writeAudit(ctx, s.logger, s.schedules, entry)
	s.invalidateDashboards(ctx)
	return s.describe(schedule), nil
}

// register swaps the cron entry for schedule. Disabled schedules only remove
// the existing entry.
func (s *PurgeService) register(schedule models.PurgeSchedule) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
		s.current = nil
	}
	if !s.cfg.Enabled || !schedule.Enabled {
		s.logger.Info("auto purge schedule inactive", zap.String("type", string(schedule.ScheduleType)), zap.Bool("enabled", schedule.Enabled))
		return false, nil
	}
	spec, err := CronSpec(schedule)
	if err != nil {
		return false, err
	}
	parsed, err := cron.ParseStandard(spec)
	if err != nil {
		return false, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	scheduleType := schedule.ScheduleType
	s.entryID = s.cron.Schedule(parsed, cron.FuncJob(func() { s.fire(scheduleType) }))
	s.current = parsed
	s.logger.Info("auto purge schedule registered", zap.String("spec", spec), zap.String("type", string(scheduleType)))
	return true, nil
}

func (s *PurgeService) describe(schedule *models.PurgeSchedule) *dto.AutoDeleteConfigResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := &dto.AutoDeleteConfigResponse{Config: schedule, Active: s.current != nil}
	if s.current != nil {
		next := s.current.Next(s.now().In(s.cfg.Location))
		resp.NextRunAt = &next
	}
	return resp
}

func purgeLockKeyFor(firedAt time.Time) string {
	return purgeLockKey + ":" + firedAt.UTC().Format("200601021504")
}

func (s *PurgeService) fire(scheduleType models.ScheduleType) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()
	firedAt := s.now().In(s.cfg.Location).Truncate(time.Minute)
	if _, err := s.RunOnce(ctx, scheduleType, firedAt); err != nil {
		s.logger.Error("auto purge run failed", zap.Error(err))
	}
}

// RunOnce performs one purge as if fired at firedAt. The lock is keyed by the
// fire time and kept until it expires, so each fire runs on one instance only.
// A failed run releases it early.
func (s *PurgeService) RunOnce(ctx context.Context, scheduleType models.ScheduleType, firedAt time.Time) (*models.PurgeRun, error) {
	run := &models.PurgeRun{FiredAt: firedAt, Cutoff: PurgeCutoff(scheduleType, firedAt), DocketNos: []string{}}

	release, ok, err := s.locker.TryAcquire(ctx, purgeLockKeyFor(firedAt), s.cfg.LockTTL)
	if err != nil {
		s.recordRun("failed", 0)
		return nil, err
	}
	if !ok {
		run.Skipped = true
		run.SkipReason = "this fire already ran on another instance"
		s.logger.Info("auto purge skipped", zap.String("reason", run.SkipReason))
		s.recordRun("skipped", 0)
		return run, nil
	}
	purged, err := s.cases.PurgeTerminatedBefore(ctx, run.Cutoff.UTC())
	if err != nil {
		release(context.Background())
		s.recordRun("failed", 0)
		return nil, repoError(err, "failed to purge terminated cases")
	}
	run.Purged = len(purged)
	for _, p := range purged {
		run.DocketNos = append(run.DocketNos, p.DocketNo)
		if s.files != nil && managedIndexCard(p.IndexCards) {
			if err := s.files.Delete(p.IndexCards); err != nil {
				s.logger.Warn("failed to delete purged index card", zap.String("path", p.IndexCards), zap.Error(err))
			}
		}
	}

	if err := s.schedules.RecordRun(ctx, firedAt.UTC(), run.Purged); err != nil {
		s.logger.Warn("failed to record purge run", zap.Error(err))
	}
	writeAudit(ctx, s.logger, s.schedules, &models.AuditLog{
		Action:    models.AuditActionPurgeRun,
		Resource:  models.AuditResourcePurge,
		NewValues: auditJSON(run),
		IPAddress: "scheduler",
		UserAgent: "cron",
	})
	s.recordRun("success", run.Purged)
	if run.Purged > 0 {
		s.invalidateDashboards(ctx)
		s.notify(*run)
	}
	s.logger.Info("auto purge finished",
		zap.Time("cutoff", run.Cutoff),
		zap.Int("purged", run.Purged),
	)
	return run, nil
}

func (s *PurgeService) notify(run models.PurgeRun) {
	if !s.cfg.NotifyAdmins || s.notifier == nil {
		return
	}
	if _, err := s.notifier.Submit(JobTypePurgeSummary, run); err != nil {
		s.logger.Warn("failed to queue purge summary", zap.Error(err))
	}
}

func (s *PurgeService) recordRun(outcome string, purged int) {
	if s.metrics != nil {
		s.metrics.RecordPurgeRun(outcome, purged)
	}
}

func (s *PurgeService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

// CronSpec converts a schedule into a five-field cron expression.
func CronSpec(schedule models.PurgeSchedule) (string, error) {
	hour, minute, err := parseClock(schedule.Time)
	if err != nil {
		return "", err
	}
	switch schedule.ScheduleType {
	case models.ScheduleDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case models.ScheduleWeekly:
		if schedule.DayOfWeek == nil || *schedule.DayOfWeek < 0 || *schedule.DayOfWeek > 6 {
			return "", fmt.Errorf("weekly schedule needs a day of week between 0 and 6")
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, *schedule.DayOfWeek), nil
	case models.ScheduleMonthly:
		if schedule.DayOfMonth == nil || *schedule.DayOfMonth < 1 || *schedule.DayOfMonth > 28 {
			return "", fmt.Errorf("monthly schedule needs a day of month between 1 and 28")
		}
		return fmt.Sprintf("%d %d %d * *", minute, hour, *schedule.DayOfMonth), nil
	default:
		return "", fmt.Errorf("unknown schedule type %q", schedule.ScheduleType)
	}
}

// PurgeCutoff returns the previous fire time for a run at firedAt. Cases
// terminated strictly before it are purged, so every terminated case stays
// recoverable for at least one full period.
func PurgeCutoff(scheduleType models.ScheduleType, firedAt time.Time) time.Time {
	switch scheduleType {
	case models.ScheduleWeekly:
		return firedAt.AddDate(0, 0, -7)
	case models.ScheduleMonthly:
		return firedAt.AddDate(0, -1, 0)
	default:
		return firedAt.AddDate(0, 0, -1)
	}
}

func parseClock(raw string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour, minute, nil
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
