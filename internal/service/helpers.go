package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/pkg/database"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/validation"
)

const dashboardCachePattern = "dashboard:*"

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// repoError maps a repository failure onto the API error space. Connectivity
// failures surface as 503 so clients can tell an outage from a bug.
func repoError(err error, message string) *appErrors.Error {
	if database.IsUnavailable(err) {
		return appErrors.Wrap(err, appErrors.ErrDatabaseUnavailable.Code, appErrors.ErrDatabaseUnavailable.Status, appErrors.ErrDatabaseUnavailable.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.WithFields(err, message, validation.FieldErrors(err))
}

func writeAudit(ctx context.Context, logger *zap.Logger, audit auditLogger, entry *models.AuditLog) {
	if audit == nil || entry == nil {
		return
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func auditJSON(v interface{}) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return payload
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func parseOptionalDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func pageOf(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
