package dto

import "time"

// CaseRequest is the create payload. It binds from JSON or multipart form
// fields; dates use YYYY-MM-DD.
type CaseRequest struct {
	DocketNo            string `json:"docketNo" form:"docketNo" validate:"required,max=100"`
	Complainant         string `json:"complainant" form:"complainant" validate:"required,max=200"`
	Respondent          string `json:"respondent" form:"respondent" validate:"required,max=200"`
	AddressOfRespondent string `json:"addressOfRespondent" form:"addressOfRespondent" validate:"required,max=500"`
	Offense             string `json:"offense" form:"offense" validate:"required,max=200"`
	DateOfCommission    string `json:"dateOfCommission" form:"dateOfCommission" validate:"required,isodate"`
	DateFiled           string `json:"dateFiled" form:"dateFiled" validate:"required,isodate"`
	ResolvingProsecutor string `json:"resolvingProsecutor" form:"resolvingProsecutor" validate:"max=200"`
	DateResolved        string `json:"dateResolved" form:"dateResolved" validate:"omitempty,isodate"`
	RemarksDecision     string `json:"remarksDecision" form:"remarksDecision" validate:"omitempty,oneof=Pending Dismissed Convicted"`
	Penalty             string `json:"penalty" form:"penalty" validate:"max=500"`
	CriminalCaseNo      string `json:"criminalCaseNo" form:"criminalCaseNo" validate:"max=100"`
	Branch              string `json:"branch" form:"branch" validate:"required,max=100"`
	DateFiledInCourt    string `json:"dateFiledInCourt" form:"dateFiledInCourt" validate:"omitempty,isodate"`
	IndexCards          string `json:"indexCards" form:"-" validate:"max=500"`
}

// UpdateCaseRequest replaces every editable field of a case. The case is
// located by OriginalDocketNo when set, otherwise by DocketNo.
type UpdateCaseRequest struct {
	OriginalDocketNo string `json:"originalDocketNo" form:"originalDocketNo" validate:"max=100"`
	CaseRequest
}

// LookupDocketNo returns the docket number identifying the stored case.
func (r UpdateCaseRequest) LookupDocketNo() string {
	if r.OriginalDocketNo != "" {
		return r.OriginalDocketNo
	}
	return r.DocketNo
}

// DeleteCaseRequest terminates a case, or purges a terminated one when
// Permanent is set.
type DeleteCaseRequest struct {
	DocketNo  string `json:"docket_no" form:"docket_no" validate:"required"`
	Permanent bool   `json:"permanent" form:"permanent"`
}

// RestoreCaseRequest reactivates a terminated case.
type RestoreCaseRequest struct {
	DocketNo string `json:"docket_no" validate:"required"`
}

// CaseQuery holds the query string accepted by case listing endpoints.
type CaseQuery struct {
	Search              string `form:"q"`
	DocketNo            string `form:"docket_no"`
	Complainant         string `form:"complainant"`
	Respondent          string `form:"respondent"`
	Offense             string `form:"offense"`
	Branch              string `form:"branch"`
	ResolvingProsecutor string `form:"resolving_prosecutor"`
	CriminalCaseNo      string `form:"criminal_case_no"`
	RemarksDecision     string `form:"remarks_decision" validate:"omitempty,oneof=Pending Dismissed Convicted"`
	DateFrom            string `form:"date_from" validate:"omitempty,isodate"`
	DateTo              string `form:"date_to" validate:"omitempty,isodate"`
	Page                int    `form:"page" validate:"omitempty,gte=1"`
	PageSize            int    `form:"page_size" validate:"omitempty,gte=1,lte=100"`
	SortBy              string `form:"sort_by"`
	SortOrder           string `form:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// CaseDeletionResult reports the state after a delete request.
type CaseDeletionResult struct {
	DocketNo  string `json:"docketNo"`
	Permanent bool   `json:"permanent"`
	IsActive  bool   `json:"isActive"`
}

// IndexCardLink is a short-lived download URL for a case's index card.
type IndexCardLink struct {
	DocketNo  string    `json:"docketNo"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
