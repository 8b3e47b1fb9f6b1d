package dto

import (
	"time"

	"github.com/noah-isme/docket-api/internal/models"
)

// ConfigureAutoDeleteRequest sets the recurring purge schedule. DayOfWeek is
// required for weekly schedules and DayOfMonth for monthly ones.
type ConfigureAutoDeleteRequest struct {
	ScheduleType string `json:"scheduleType" validate:"required,oneof=daily weekly monthly"`
	DayOfWeek    *int   `json:"dayOfWeek" validate:"omitempty,gte=0,lte=6"`
	DayOfMonth   *int   `json:"dayOfMonth" validate:"omitempty,gte=1,lte=28"`
	Time         string `json:"time" validate:"required,clock"`
	Enabled      *bool  `json:"enabled"`
}

// AutoDeleteConfigResponse confirms the persisted schedule and whether the
// scheduler has it registered.
type AutoDeleteConfigResponse struct {
	Config    *models.PurgeSchedule `json:"config"`
	Active    bool                  `json:"active"`
	NextRunAt *time.Time            `json:"nextRunAt,omitempty"`
}
