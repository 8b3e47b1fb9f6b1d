package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docket-api/internal/models"
)

const caseColumns = `id, docket_no, complainant, respondent, address_of_respondent, offense, date_of_commission, date_filed, resolving_prosecutor, date_resolved, remarks_decision, penalty, criminal_case_no, branch, date_filed_in_court, index_cards, is_active, terminated_at, created_by, created_at, updated_at`

var caseSortColumns = map[string]string{
	"docket_no":        "docket_no",
	"docketNo":         "docket_no",
	"date_filed":       "date_filed",
	"dateFiled":        "date_filed",
	"respondent":       "respondent",
	"complainant":      "complainant",
	"remarks_decision": "remarks_decision",
	"created_at":       "created_at",
	"updated_at":       "updated_at",
	"terminated_at":    "terminated_at",
}

// PurgedCase identifies a case removed by a purge.
type PurgedCase struct {
	ID         string `db:"id"`
	DocketNo   string `db:"docket_no"`
	IndexCards string `db:"index_cards"`
}

// CaseRepository provides database access for docketed cases.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository creates a new CaseRepository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// List returns cases matching the filter along with the total count.
func (r *CaseRepository) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	where, args := buildCaseWhere(filter)

	sortBy, ok := caseSortColumns[filter.SortBy]
	if !ok {
		sortBy = "date_filed"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM cases %s ORDER BY %s %s, docket_no ASC LIMIT %d OFFSET %d", caseColumns, where, sortBy, sortOrder, pageSize, offset)
	var cases []models.Case
	if err := r.db.SelectContext(ctx, &cases, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM cases "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}
	return cases, total, nil
}

// ListAll returns every case in the given state ordered by docket number.
func (r *CaseRepository) ListAll(ctx context.Context, status models.CaseStatus) ([]models.Case, error) {
	where, args := buildCaseWhere(models.CaseFilter{Status: status})
	query := fmt.Sprintf("SELECT %s FROM cases %s ORDER BY docket_no ASC", caseColumns, where)
	var cases []models.Case
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("list all cases: %w", err)
	}
	return cases, nil
}

func buildCaseWhere(filter models.CaseFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	switch filter.Status {
	case models.CaseStatusAll:
	case models.CaseStatusTerminated:
		conditions = append(conditions, "is_active = FALSE")
	default:
		conditions = append(conditions, "is_active = TRUE")
	}

	like := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(value))+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(%s) LIKE $%d", column, len(args)))
	}
	like("docket_no", filter.DocketNo)
	like("complainant", filter.Complainant)
	like("respondent", filter.Respondent)
	like("offense", filter.Offense)
	like("branch", filter.Branch)
	like("resolving_prosecutor", filter.ResolvingProsecutor)
	like("criminal_case_no", filter.CriminalCaseNo)

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.Search))+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(docket_no) LIKE $%[1]d OR LOWER(complainant) LIKE $%[1]d OR LOWER(respondent) LIKE $%[1]d OR LOWER(offense) LIKE $%[1]d OR LOWER(branch) LIKE $%[1]d)", n))
	}
	if filter.RemarksDecision != "" {
		args = append(args, filter.RemarksDecision)
		conditions = append(conditions, fmt.Sprintf("remarks_decision = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("date_filed >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("date_filed <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "WHERE 1=1", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// FindByDocketNo returns a case regardless of state. sql.ErrNoRows is
// returned unwrapped when absent.
func (r *CaseRepository) FindByDocketNo(ctx context.Context, docketNo string) (*models.Case, error) {
	query := fmt.Sprintf("SELECT %s FROM cases WHERE docket_no = $1 LIMIT 1", caseColumns)
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, docketNo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find case by docket no: %w", err)
	}
	return &c, nil
}

// ExistsByDocketNo reports whether a docket number is taken.
func (r *CaseRepository) ExistsByDocketNo(ctx context.Context, docketNo string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM cases WHERE docket_no = $1)`, docketNo); err != nil {
		return false, fmt.Errorf("check docket no: %w", err)
	}
	return exists, nil
}

// Create inserts a new case.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	const query = `INSERT INTO cases (id, docket_no, complainant, respondent, address_of_respondent, offense, date_of_commission, date_filed, resolving_prosecutor, date_resolved, remarks_decision, penalty, criminal_case_no, branch, date_filed_in_court, index_cards, is_active, terminated_at, created_by, created_at, updated_at) VALUES (:id, :docket_no, :complainant, :respondent, :address_of_respondent, :offense, :date_of_commission, :date_filed, :resolving_prosecutor, :date_resolved, :remarks_decision, :penalty, :criminal_case_no, :branch, :date_filed_in_court, :index_cards, :is_active, :terminated_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of a case identified by ID.
func (r *CaseRepository) Update(ctx context.Context, c *models.Case) error {
	c.UpdatedAt = time.Now().UTC()
	const query = `UPDATE cases SET docket_no = :docket_no, complainant = :complainant, respondent = :respondent, address_of_respondent = :address_of_respondent, offense = :offense, date_of_commission = :date_of_commission, date_filed = :date_filed, resolving_prosecutor = :resolving_prosecutor, date_resolved = :date_resolved, remarks_decision = :remarks_decision, penalty = :penalty, criminal_case_no = :criminal_case_no, branch = :branch, date_filed_in_court = :date_filed_in_court, index_cards = :index_cards, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	return expectAffected(res, "update case")
}

// Terminate marks an active case as terminated.
func (r *CaseRepository) Terminate(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE cases SET is_active = FALSE, terminated_at = $2, updated_at = $2 WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("terminate case: %w", err)
	}
	return expectAffected(res, "terminate case")
}

// Restore reactivates a terminated case.
func (r *CaseRepository) Restore(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE cases SET is_active = TRUE, terminated_at = NULL, updated_at = $2 WHERE id = $1 AND is_active = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("restore case: %w", err)
	}
	return expectAffected(res, "restore case")
}

// Purge hard-deletes a terminated case. Active cases are never removed.
func (r *CaseRepository) Purge(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cases WHERE id = $1 AND is_active = FALSE`, id)
	if err != nil {
		return fmt.Errorf("purge case: %w", err)
	}
	return expectAffected(res, "purge case")
}

// PurgeTerminatedBefore hard-deletes terminated cases whose termination time
// is strictly before cutoff and returns what was removed.
func (r *CaseRepository) PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) ([]PurgedCase, error) {
	const query = `DELETE FROM cases WHERE is_active = FALSE AND terminated_at < $1 RETURNING id, docket_no, index_cards`
	var purged []PurgedCase
	if err := r.db.SelectContext(ctx, &purged, query, cutoff); err != nil {
		return nil, fmt.Errorf("purge terminated cases: %w", err)
	}
	return purged, nil
}

// Counts aggregates case totals by state and decision.
func (r *CaseRepository) Counts(ctx context.Context) (*models.CaseCounts, error) {
	const query = `SELECT
		COUNT(*) FILTER (WHERE is_active) AS active,
		COUNT(*) FILTER (WHERE NOT is_active) AS terminated,
		COUNT(*) FILTER (WHERE is_active AND remarks_decision = 'Pending') AS pending,
		COUNT(*) FILTER (WHERE is_active AND remarks_decision = 'Dismissed') AS dismissed,
		COUNT(*) FILTER (WHERE is_active AND remarks_decision = 'Convicted') AS convicted
	FROM cases`
	var counts models.CaseCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count cases by state: %w", err)
	}
	return &counts, nil
}

// RecentlyFiled returns the newest active cases by filing date.
func (r *CaseRepository) RecentlyFiled(ctx context.Context, limit int) ([]models.CaseSummary, error) {
	const query = `SELECT docket_no, complainant, respondent, offense, date_filed, date_resolved, remarks_decision FROM cases WHERE is_active = TRUE ORDER BY date_filed DESC NULLS LAST, created_at DESC LIMIT $1`
	var rows []models.CaseSummary
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("recently filed cases: %w", err)
	}
	return rows, nil
}

// RecentlyResolved returns the latest active cases with a resolution date.
func (r *CaseRepository) RecentlyResolved(ctx context.Context, limit int) ([]models.CaseSummary, error) {
	const query = `SELECT docket_no, complainant, respondent, offense, date_filed, date_resolved, remarks_decision FROM cases WHERE is_active = TRUE AND date_resolved IS NOT NULL ORDER BY date_resolved DESC LIMIT $1`
	var rows []models.CaseSummary
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("recently resolved cases: %w", err)
	}
	return rows, nil
}

// CreateAuditLog stores an audit log entry.
func (r *CaseRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, r.db, log)
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
