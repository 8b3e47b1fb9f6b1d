package models

import "time"

// Audit actions.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionTokenRefresh   = "TOKEN_REFRESH"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserRole       = "USER_ROLE_CHANGE"
	AuditActionUserStatus     = "USER_STATUS_CHANGE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionCaseCreate     = "CASE_CREATE"
	AuditActionCaseUpdate     = "CASE_UPDATE"
	AuditActionCaseTerminate  = "CASE_TERMINATE"
	AuditActionCaseRestore    = "CASE_RESTORE"
	AuditActionCasePurge      = "CASE_PURGE"
	AuditActionCaseImport     = "CASE_IMPORT"
	AuditActionPurgeConfigure = "PURGE_CONFIGURE"
	AuditActionPurgeRun       = "PURGE_RUN"
)

// Audit resources.
const (
	AuditResourceAuth  = "auth"
	AuditResourceUsers = "users"
	AuditResourceCases = "cases"
	AuditResourcePurge = "purge_schedule"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
