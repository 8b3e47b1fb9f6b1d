package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/export"
	"github.com/noah-isme/docket-api/pkg/spreadsheet"
)

type caseImporter interface {
	Insert(ctx context.Context, req dto.CaseRequest, actorID string) (*models.Case, error)
	InvalidateDashboards(ctx context.Context)
}

type caseExportSource interface {
	ListAll(ctx context.Context, status models.CaseStatus) ([]models.Case, error)
}

type importRecorder interface {
	RecordImport(inserted, rejected int)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExcelConfig bounds spreadsheet uploads.
type ExcelConfig struct {
	MaxRows int
}

// ExportFile is a rendered case export.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExcelService imports case rows from spreadsheets and renders exports.
type ExcelService struct {
	cases   caseImporter
	source  caseExportSource
	audit   auditLogger
	metrics importRecorder
	xlsx    xlsxRenderer
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	cfg     ExcelConfig
	now     func() time.Time
}

// NewExcelService constructs an ExcelService. Nil renderers fall back to the
// package defaults.
func NewExcelService(cases caseImporter, source caseExportSource, audit auditLogger, metrics importRecorder, xlsx xlsxRenderer, csv csvRenderer, pdf pdfRenderer, cfg ExcelConfig, logger *zap.Logger) *ExcelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter("Cases")
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	return &ExcelService{
		cases:   cases,
		source:  source,
		audit:   audit,
		metrics: metrics,
		xlsx:    xlsx,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Import validates the header row and inserts each data row as a new active
// case. Header problems reject the whole file; row problems are collected and
// the remaining rows are still inserted.
func (s *ExcelService) Import(ctx context.Context, filename string, r io.Reader, actorID string, meta models.RequestMeta) (*dto.ImportResult, error) {
	format, err := spreadsheet.DetectFormat(filename)
	if err != nil {
		return nil, appErrors.WithFields(err, "unsupported file type", map[string]string{"file": "must be an .xlsx or .csv file"})
	}
	table, err := spreadsheet.Read(r, format)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrEmptySheet) {
			return nil, appErrors.WithDetails(appErrors.ErrInvalidColumns, "spreadsheet has no header row", []string{"The first row must contain the column names."})
		}
		return nil, appErrors.WithFields(err, "unable to read spreadsheet", map[string]string{"file": "could not be parsed"})
	}
	if problems := spreadsheet.ValidateColumns(table.Headers, spreadsheet.ExpectedColumns); len(problems) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidColumns, "spreadsheet columns are invalid", problems)
	}
	if len(table.Rows) > s.cfg.MaxRows {
		return nil, appErrors.WithFields(nil, "spreadsheet has too many rows", map[string]string{"file": fmt.Sprintf("must contain at most %d data rows", s.cfg.MaxRows)})
	}

	result := &dto.ImportResult{TotalRows: len(table.Rows), Errors: []string{}}
	for i, row := range table.Rows {
		rowNo := i + 2
		if i < len(table.RowNumbers) {
			rowNo = table.RowNumbers[i]
		}
		req, problems := caseRequestFromRow(table, row)
		if len(problems) > 0 {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNo, strings.Join(problems, "; ")))
			continue
		}
		if _, err := s.cases.Insert(ctx, req, actorID); err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrDatabaseUnavailable.Code {
				return nil, appErr
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNo, describeRowError(appErr)))
			continue
		}
		result.Inserted++
	}

	if s.metrics != nil {
		s.metrics.RecordImport(result.Inserted, result.Failed)
	}
	if result.Inserted > 0 {
		s.cases.InvalidateDashboards(ctx)
	}
	writeAudit(ctx, s.logger, s.audit, &models.AuditLog{
		UserID:    stringPtr(actorID),
		Action:    models.AuditActionCaseImport,
		Resource:  models.AuditResourceCases,
		NewValues: auditJSON(map[string]interface{}{"filename": filename, "totalRows": result.TotalRows, "inserted": result.Inserted, "failed": result.Failed}),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	s.logger.Info("case import finished",
		zap.String("filename", filename),
		zap.Int("rows", result.TotalRows),
		zap.Int("inserted", result.Inserted),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// Export renders cases in the requested state as xlsx (default), csv or pdf.
func (s *ExcelService) Export(ctx context.Context, query dto.ExportQuery) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = "xlsx"
	}
	status := models.CaseStatus(strings.ToLower(strings.TrimSpace(query.Status)))
	if status == "" {
		status = models.CaseStatusActive
	}
	switch status {
	case models.CaseStatusActive, models.CaseStatusTerminated, models.CaseStatusAll:
	default:
		return nil, appErrors.WithFields(nil, "invalid export request", map[string]string{"status": "must be one of: active, terminated, all"})
	}

	cases, err := s.source.ListAll(ctx, status)
	if err != nil {
		return nil, repoError(err, "failed to load cases for export")
	}
	data := caseDataset(cases)
	stamp := s.now().Format("20060102-150405")
	base := fmt.Sprintf("cases-%s-%s", status, stamp)

	switch format {
	case "xlsx":
		payload, err := s.xlsx.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render spreadsheet")
		}
		return &ExportFile{Filename: base + ".xlsx", ContentType: export.ContentTypeXLSX, Payload: payload}, nil
	case "csv":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{Filename: base + ".csv", ContentType: export.ContentTypeCSV, Payload: payload}, nil
	case "pdf":
		title := fmt.Sprintf("Case Docket (%s) - %s", status, s.now().Format("2006-01-02"))
		payload, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Payload: payload}, nil
	default:
		return nil, appErrors.WithFields(nil, "invalid export request", map[string]string{"format": "must be one of: xlsx, csv, pdf"})
	}
}

// caseRequestFromRow maps a sheet row onto a create request. Date cells are
// normalised to YYYY-MM-DD; unparseable dates are reported per column.
func caseRequestFromRow(table *spreadsheet.Table, row []string) (dto.CaseRequest, []string) {
	var problems []string
	date := func(column string) string {
		value, err := spreadsheet.NormalizeDate(table.Value(row, column))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s is not a valid date", column))
			return ""
		}
		return value
	}

	req := dto.CaseRequest{
		DocketNo:            table.Value(row, "Docket No"),
		Complainant:         table.Value(row, "Complainant"),
		Respondent:          table.Value(row, "Respondent"),
		AddressOfRespondent: table.Value(row, "Address of Respondent"),
		Offense:             table.Value(row, "Offense"),
		DateOfCommission:    date("Date of Commission"),
		DateFiled:           date("Date Filed"),
		ResolvingProsecutor: table.Value(row, "Resolving Prosecutor"),
		DateResolved:        date("Date Resolved"),
		RemarksDecision:     canonicalDecision(table.Value(row, "Remarks/Decision")),
		Penalty:             table.Value(row, "Penalty"),
		CriminalCaseNo:      table.Value(row, "Criminal Case No"),
		Branch:              table.Value(row, "Branch"),
		DateFiledInCourt:    date("Date Filed in Court"),
		IndexCards:          table.Value(row, "Index Cards"),
	}
	return req, problems
}

// canonicalDecision accepts decisions in any letter case.
func canonicalDecision(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, d := range []models.RemarksDecision{models.DecisionPending, models.DecisionDismissed, models.DecisionConvicted} {
		if strings.EqualFold(raw, string(d)) {
			return string(d)
		}
	}
	return raw
}

func describeRowError(err *appErrors.Error) string {
	if len(err.Fields) == 0 {
		return err.Message
	}
	keys := make([]string, 0, len(err.Fields))
	for k := range err.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, err.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func caseDataset(cases []models.Case) export.Dataset {
	data := export.Dataset{Headers: spreadsheet.ExpectedColumns, Rows: make([]map[string]string, 0, len(cases))}
	for _, c := range cases {
		indexCards := c.IndexCards
		if indexCards == "" {
			indexCards = models.NoIndexCard
		}
		data.Rows = append(data.Rows, map[string]string{
			"Docket No":             c.DocketNo,
			"Complainant":           c.Complainant,
			"Respondent":            c.Respondent,
			"Address of Respondent": c.AddressOfRespondent,
			"Offense":               c.Offense,
			"Date of Commission":    formatDate(c.DateOfCommission),
			"Date Filed":            formatDate(c.DateFiled),
			"Resolving Prosecutor":  c.ResolvingProsecutor,
			"Date Resolved":         formatDate(c.DateResolved),
			"Remarks/Decision":      string(c.RemarksDecision),
			"Penalty":               c.Penalty,
			"Criminal Case No":      c.CriminalCaseNo,
			"Branch":                c.Branch,
			"Date Filed in Court":   formatDate(c.DateFiledInCourt),
			"Index Cards":           indexCards,
		})
	}
	return data
}
