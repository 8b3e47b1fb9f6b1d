package models

import "time"

// ScheduleType is the recurrence of the auto-purge job.
type ScheduleType string

const (
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
)

// PurgeSchedule is the single persisted auto-purge configuration.
type PurgeSchedule struct {
	ID           int          `db:"id" json:"-"`
	ScheduleType ScheduleType `db:"schedule_type" json:"scheduleType"`
	DayOfWeek    *int         `db:"day_of_week" json:"dayOfWeek,omitempty"`
	DayOfMonth   *int         `db:"day_of_month" json:"dayOfMonth,omitempty"`
	Time         string       `db:"run_time" json:"time"`
	Enabled      bool         `db:"enabled" json:"enabled"`
	LastRunAt    *time.Time   `db:"last_run_at" json:"lastRunAt,omitempty"`
	LastPurged   int          `db:"last_purged" json:"lastPurged"`
	UpdatedBy    *string      `db:"updated_by" json:"updatedBy,omitempty"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// PurgeRun summarises one execution of the purge job.
type PurgeRun struct {
	FiredAt    time.Time `json:"firedAt"`
	Cutoff     time.Time `json:"cutoff"`
	Purged     int       `json:"purged"`
	DocketNos  []string  `json:"docketNos"`
	Skipped    bool      `json:"skipped"`
	SkipReason string    `json:"skipReason,omitempty"`
}
