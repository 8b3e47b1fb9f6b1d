package models

import "time"

// RemarksDecision is the outcome status of a case.
type RemarksDecision string

const (
	DecisionPending   RemarksDecision = "Pending"
	DecisionDismissed RemarksDecision = "Dismissed"
	DecisionConvicted RemarksDecision = "Convicted"
)

// NoIndexCard marks a case without an uploaded index-card image.
const NoIndexCard = "N/A"

// Case is a docketed complaint stored in the cases table. Terminated cases
// have IsActive false and a TerminatedAt timestamp until they are purged.
type Case struct {
	ID                  string          `db:"id" json:"id"`
	DocketNo            string          `db:"docket_no" json:"docketNo"`
	Complainant         string          `db:"complainant" json:"complainant"`
	Respondent          string          `db:"respondent" json:"respondent"`
	AddressOfRespondent string          `db:"address_of_respondent" json:"addressOfRespondent"`
	Offense             string          `db:"offense" json:"offense"`
	DateOfCommission    *time.Time      `db:"date_of_commission" json:"dateOfCommission"`
	DateFiled           *time.Time      `db:"date_filed" json:"dateFiled"`
	ResolvingProsecutor string          `db:"resolving_prosecutor" json:"resolvingProsecutor"`
	DateResolved        *time.Time      `db:"date_resolved" json:"dateResolved"`
	RemarksDecision     RemarksDecision `db:"remarks_decision" json:"remarksDecision"`
	Penalty             string          `db:"penalty" json:"penalty"`
	CriminalCaseNo      string          `db:"criminal_case_no" json:"criminalCaseNo"`
	Branch              string          `db:"branch" json:"branch"`
	DateFiledInCourt    *time.Time      `db:"date_filed_in_court" json:"dateFiledInCourt"`
	IndexCards          string          `db:"index_cards" json:"indexCards"`
	IsActive            bool            `db:"is_active" json:"isActive"`
	TerminatedAt        *time.Time      `db:"terminated_at" json:"terminatedAt,omitempty"`
	CreatedBy           *string         `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updatedAt"`
}

// HasIndexCard reports whether an image is attached.
func (c *Case) HasIndexCard() bool {
	return c.IndexCards != "" && c.IndexCards != NoIndexCard
}

// CaseStatus selects cases by lifecycle state.
type CaseStatus string

const (
	CaseStatusActive     CaseStatus = "active"
	CaseStatusTerminated CaseStatus = "terminated"
	CaseStatusAll        CaseStatus = "all"
)

// CaseFilter captures search and paging criteria for cases.
type CaseFilter struct {
	Status              CaseStatus
	Search              string
	DocketNo            string
	Complainant         string
	Respondent          string
	Offense             string
	Branch              string
	ResolvingProsecutor string
	CriminalCaseNo      string
	RemarksDecision     RemarksDecision
	DateFrom            *time.Time
	DateTo              *time.Time
	Page                int
	PageSize            int
	SortBy              string
	SortOrder           string
}

// CaseCounts aggregates docket totals for dashboards.
type CaseCounts struct {
	Active     int `db:"active" json:"active"`
	Terminated int `db:"terminated" json:"terminated"`
	Pending    int `db:"pending" json:"pending"`
	Dismissed  int `db:"dismissed" json:"dismissed"`
	Convicted  int `db:"convicted" json:"convicted"`
}
