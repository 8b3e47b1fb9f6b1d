package models

import "time"

// CaseSummary is the compact case row shown on dashboards.
type CaseSummary struct {
	DocketNo        string          `db:"docket_no" json:"docketNo"`
	Complainant     string          `db:"complainant" json:"complainant"`
	Respondent      string          `db:"respondent" json:"respondent"`
	Offense         string          `db:"offense" json:"offense"`
	DateFiled       *time.Time      `db:"date_filed" json:"dateFiled"`
	DateResolved    *time.Time      `db:"date_resolved" json:"dateResolved"`
	RemarksDecision RemarksDecision `db:"remarks_decision" json:"remarksDecision"`
}

// SystemMetrics is a point-in-time snapshot of process metrics.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CasesPurgedTotal         uint64    `json:"casesPurgedTotal"`
	CasesImportedTotal       uint64    `json:"casesImportedTotal"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// AdminDashboard is the Admin landing page payload.
type AdminDashboard struct {
	Cases         CaseCounts     `json:"cases"`
	Accounts      []RoleCount    `json:"accounts"`
	PurgeSchedule *PurgeSchedule `json:"purgeSchedule,omitempty"`
	System        SystemMetrics  `json:"system"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}

// ClerkDashboard is the Clerk landing page payload.
type ClerkDashboard struct {
	Cases         CaseCounts    `json:"cases"`
	PendingCount  int           `json:"pendingCount"`
	RecentlyFiled []CaseSummary `json:"recentlyFiled"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// StaffDashboard is the Staff landing page payload.
type StaffDashboard struct {
	Cases            CaseCounts    `json:"cases"`
	RecentlyResolved []CaseSummary `json:"recentlyResolved"`
	GeneratedAt      time.Time     `json:"generatedAt"`
}
