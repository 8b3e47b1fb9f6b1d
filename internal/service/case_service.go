package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/pkg/database"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/validation"
)

const indexCardDir = "index-cards"

type caseStore interface {
	List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error)
	FindByDocketNo(ctx context.Context, docketNo string) (*models.Case, error)
	ExistsByDocketNo(ctx context.Context, docketNo string) (bool, error)
	Create(ctx context.Context, c *models.Case) error
	Update(ctx context.Context, c *models.Case) error
	Terminate(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string, at time.Time) error
	Purge(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type fileStorage interface {
	SaveStream(name string, r io.Reader) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type urlSigner interface {
	Generate(subject, relPath string) (string, time.Time, error)
	Parse(token string) (subject, relPath string, expiresAt time.Time, err error)
}

// ImageUpload is an index-card image received with a create or update.
type ImageUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// IndexCardDownload is an opened index-card file ready for streaming.
type IndexCardDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// CaseServiceConfig bounds index-card uploads.
type CaseServiceConfig struct {
	MaxImageBytes int64
	AllowedMIMEs  []string
	DownloadPath  string
}

// CaseService implements the case docket workflows: CRUD, the
// Active -> Terminated -> Purged lifecycle, and index-card handling.
type CaseService struct {
	repo      caseStore
	storage   fileStorage
	signer    urlSigner
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CaseServiceConfig
	mimeSet   map[string]struct{}
	now       func() time.Time
}

// NewCaseService constructs a CaseService.
func NewCaseService(repo caseStore, storage fileStorage, signer urlSigner, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger, cfg CaseServiceConfig) *CaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/index-cards/download"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &CaseService{
		repo:      repo,
		storage:   storage,
		signer:    signer,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List searches cases in the given state. An empty result is not an error.
func (s *CaseService) List(ctx context.Context, query dto.CaseQuery, status models.CaseStatus) ([]models.Case, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationError(err, "invalid case search")
	}
	filter := models.CaseFilter{
		Status:              status,
		Search:              query.Search,
		DocketNo:            query.DocketNo,
		Complainant:         query.Complainant,
		Respondent:          query.Respondent,
		Offense:             query.Offense,
		Branch:              query.Branch,
		ResolvingProsecutor: query.ResolvingProsecutor,
		CriminalCaseNo:      query.CriminalCaseNo,
		RemarksDecision:     models.RemarksDecision(query.RemarksDecision),
		DateFrom:            parseOptionalDate(query.DateFrom),
		DateTo:              parseOptionalDate(query.DateTo),
		Page:                query.Page,
		PageSize:            query.PageSize,
		SortBy:              query.SortBy,
		SortOrder:           query.SortOrder,
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, nil, appErrors.WithFields(nil, "invalid case search", map[string]string{"date_to": "must not be before date_from"})
	}

	cases, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, repoError(err, "failed to list cases")
	}
	if cases == nil {
		cases = []models.Case{}
	}
	return cases, pageOf(filter.Page, filter.PageSize, total), nil
}

// Get returns a case in any state by docket number.
func (s *CaseService) Get(ctx context.Context, docketNo string) (*models.Case, error) {
	docketNo = strings.TrimSpace(docketNo)
	if docketNo == "" {
		return nil, appErrors.WithFields(nil, "docket number is required", map[string]string{"docket_no": "is required"})
	}
	c, err := s.repo.FindByDocketNo(ctx, docketNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, repoError(err, "failed to load case")
	}
	return c, nil
}

// Create validates and stores a new active case, attaching image when given.
func (s *CaseService) Create(ctx context.Context, req dto.CaseRequest, image *ImageUpload, actorID string, meta models.RequestMeta) (*models.Case, error) {
	c, err := s.insert(ctx, req, image, actorID)
	if err != nil {
		return nil, err
	}
	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionCaseCreate,
		Resource:   models.AuditResourceCases,
		ResourceID: &c.ID,
		NewValues:  auditJSON(c),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.invalidateDashboards(ctx)
	return c, nil
}

// Insert validates and stores a case without auditing or cache invalidation.
// Bulk import uses it and records a single summary instead.
func (s *CaseService) Insert(ctx context.Context, req dto.CaseRequest, actorID string) (*models.Case, error) {
	return s.insert(ctx, req, nil, actorID)
}

func (s *CaseService) insert(ctx context.Context, req dto.CaseRequest, image *ImageUpload, actorID string) (*models.Case, error) {
	req = normalizeCaseRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid case payload")
	}

	exists, err := s.repo.ExistsByDocketNo(ctx, req.DocketNo)
	if err != nil {
		return nil, repoError(err, "failed to check docket number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("docket number %s already exists", req.DocketNo))
	}

	c := &models.Case{ID: uuid.NewString(), IsActive: true, CreatedBy: stringPtr(actorID)}
	applyCaseRequest(c, req)
	c.IndexCards = models.NoIndexCard
	if req.IndexCards != "" {
		c.IndexCards = req.IndexCards
	}
	if image != nil {
		stored, err := s.storeImage(image)
		if err != nil {
			return nil, err
		}
		c.IndexCards = stored
	}

	if err := s.repo.Create(ctx, c); err != nil {
		if image != nil {
			s.removeImage(c.IndexCards)
		}
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("docket number %s already exists", req.DocketNo))
		}
		return nil, repoError(err, "failed to create case")
	}
	return c, nil
}

// Update replaces the editable fields of an active case. Renaming the docket
// number onto another case is a conflict. A new image replaces the old file.
func (s *CaseService) Update(ctx context.Context, req dto.UpdateCaseRequest, image *ImageUpload, actorID string, meta models.RequestMeta) (*models.Case, error) {
	req.OriginalDocketNo = strings.TrimSpace(req.OriginalDocketNo)
	req.CaseRequest = normalizeCaseRequest(req.CaseRequest)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid case payload")
	}

	existing, err := s.Get(ctx, req.LookupDocketNo())
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		return nil, appErrors.Clone(appErrors.ErrCaseTerminated, "restore the case before editing it")
	}
	if req.DocketNo != existing.DocketNo {
		taken, err := s.repo.ExistsByDocketNo(ctx, req.DocketNo)
		if err != nil {
			return nil, repoError(err, "failed to check docket number")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("docket number %s already exists", req.DocketNo))
		}
	}

	before := *existing
	updated := *existing
	applyCaseRequest(&updated, req.CaseRequest)
	if image != nil {
		stored, err := s.storeImage(image)
		if err != nil {
			return nil, err
		}
		updated.IndexCards = stored
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		if image != nil {
			s.removeImage(updated.IndexCards)
		}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		case database.IsUniqueViolation(err):
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("docket number %s already exists", req.DocketNo))
		}
		return nil, repoError(err, "failed to update case")
	}
	if image != nil && before.HasIndexCard() && before.IndexCards != updated.IndexCards {
		s.removeImage(before.IndexCards)
	}

	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionCaseUpdate,
		Resource:   models.AuditResourceCases,
		ResourceID: &updated.ID,
		OldValues:  auditJSON(before),
		NewValues:  auditJSON(updated),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.invalidateDashboards(ctx)
	return &updated, nil
}

// Delete terminates an active case, or purges a terminated one when
// req.Permanent is set. Active cases are never purged.
func (s *CaseService) Delete(ctx context.Context, req dto.DeleteCaseRequest, actorID string, role models.UserRole, meta models.RequestMeta) (*dto.CaseDeletionResult, error) {
	req.DocketNo = strings.TrimSpace(req.DocketNo)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid delete payload")
	}
	if req.Permanent && role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can permanently delete cases")
	}

	c, err := s.Get(ctx, req.DocketNo)
	if err != nil {
		return nil, err
	}
	if req.Permanent {
		return s.purge(ctx, c, actorID, meta)
	}
	return s.terminate(ctx, c, actorID, meta)
}

func (s *CaseService) terminate(ctx context.Context, c *models.Case, actorID string, meta models.RequestMeta) (*dto.CaseDeletionResult, error) {
	if !c.IsActive {
		return nil, appErrors.Clone(appErrors.ErrCaseTerminated, "case is already terminated")
	}
	at := s.now()
	if err := s.repo.Terminate(ctx, c.ID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCaseTerminated, "case is already terminated")
		}
		return nil, repoError(err, "failed to terminate case")
	}
	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionCaseTerminate,
		Resource:   models.AuditResourceCases,
		ResourceID: &c.ID,
		OldValues:  auditJSON(map[string]interface{}{"docketNo": c.DocketNo, "isActive": true}),
		NewValues:  auditJSON(map[string]interface{}{"docketNo": c.DocketNo, "isActive": false, "terminatedAt": at}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.invalidateDashboards(ctx)
	return &dto.CaseDeletionResult{DocketNo: c.DocketNo, Permanent: false, IsActive: false}, nil
}

func (s *CaseService) purge(ctx context.Context, c *models.Case, actorID string, meta models.RequestMeta) (*dto.CaseDeletionResult, error) {
	if c.IsActive {
		return nil, appErrors.Clone(appErrors.ErrCaseActive, "active cases cannot be permanently deleted")
	}
	if err := s.repo.Purge(ctx, c.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCaseActive, "active cases cannot be permanently deleted")
		}
		return nil, repoError(err, "failed to purge case")
	}
	if c.HasIndexCard() {
		s.removeImage(c.IndexCards)
	}
	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionCasePurge,
		Resource:   models.AuditResourceCases,
		ResourceID: &c.ID,
		OldValues:  auditJSON(c),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.invalidateDashboards(ctx)
	return &dto.CaseDeletionResult{DocketNo: c.DocketNo, Permanent: true, IsActive: false}, nil
}

// Restore reactivates a terminated case.
func (s *CaseService) Restore(ctx context.Context, req dto.RestoreCaseRequest, actorID string, meta models.RequestMeta) (*models.Case, error) {
	req.DocketNo = strings.TrimSpace(req.DocketNo)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid restore payload")
	}
	c, err := s.Get(ctx, req.DocketNo)
	if err != nil {
		return nil, err
	}
	if c.IsActive {
		return nil, appErrors.Clone(appErrors.ErrCaseActive, "case is already active")
	}
	at := s.now()
	if err := s.repo.Restore(ctx, c.ID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCaseActive, "case is already active")
		}
		return nil, repoError(err, "failed to restore case")
	}
	c.IsActive = true
	c.TerminatedAt = nil
	c.UpdatedAt = at

	writeAudit(ctx, s.logger, s.repo, &models.AuditLog{
		UserID:     stringPtr(actorID),
		Action:     models.AuditActionCaseRestore,
		Resource:   models.AuditResourceCases,
		ResourceID: &c.ID,
		NewValues:  auditJSON(map[string]interface{}{"docketNo": c.DocketNo, "isActive": true}),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.invalidateDashboards(ctx)
	return c, nil
}

// IndexCardLink issues a signed, expiring download URL for a case image.
func (s *CaseService) IndexCardLink(ctx context.Context, docketNo string) (*dto.IndexCardLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	c, err := s.Get(ctx, docketNo)
	if err != nil {
		return nil, err
	}
	if !c.HasIndexCard() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "case has no index card")
	}
	token, expiresAt, err := s.signer.Generate(c.DocketNo, c.IndexCards)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	return &dto.IndexCardLink{
		DocketNo:  c.DocketNo,
		URL:       fmt.Sprintf("%s?token=%s", s.cfg.DownloadPath, url.QueryEscape(token)),
		ExpiresAt: expiresAt,
	}, nil
}

// OpenIndexCard validates a download token and opens the referenced image.
func (s *CaseService) OpenIndexCard(ctx context.Context, token string) (*IndexCardDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	docketNo, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	c, err := s.Get(ctx, docketNo)
	if err != nil {
		return nil, err
	}
	if c.IndexCards != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token no longer matches the case image")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "index card file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open index card")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read index card metadata")
	}
	return &IndexCardDownload{
		File:      file,
		Filename:  path.Base(relPath),
		MimeType:  imageMimeForExt(path.Ext(relPath)),
		SizeBytes: info.Size(),
	}, nil
}

// InvalidateDashboards drops cached dashboard summaries.
func (s *CaseService) InvalidateDashboards(ctx context.Context) {
	s.invalidateDashboards(ctx)
}

func (s *CaseService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *CaseService) storeImage(image *ImageUpload) (string, error) {
	if image.Content == nil || image.Size <= 0 {
		return "", appErrors.WithFields(nil, "index card image is empty", map[string]string{"indexCards": "file is empty"})
	}
	if image.Size > s.cfg.MaxImageBytes {
		return "", appErrors.WithFields(nil, "index card image too large", map[string]string{"indexCards": fmt.Sprintf("must be at most %d bytes", s.cfg.MaxImageBytes)})
	}
	header := make([]byte, 512)
	n, err := image.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect upload")
	}
	mimeType := http.DetectContentType(header[:n])
	if _, ok := s.mimeSet[mimeType]; !ok {
		return "", appErrors.WithFields(nil, "unsupported index card format", map[string]string{"indexCards": "must be a JPEG, PNG, GIF or WebP image"})
	}
	if _, err := image.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	name := path.Join(indexCardDir, uuid.NewString()+imageExtension(mimeType))
	stored, err := s.storage.SaveStream(name, image.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store index card")
	}
	return stored, nil
}

func (s *CaseService) removeImage(relPath string) {
	if s.storage == nil || !managedIndexCard(relPath) {
		return
	}
	if err := s.storage.Delete(relPath); err != nil {
		s.logger.Warn("failed to delete index card file", zap.String("path", relPath), zap.Error(err))
	}
}

// managedIndexCard reports whether ref names a file written by storeImage.
func managedIndexCard(ref string) bool {
	return strings.HasPrefix(ref, indexCardDir+"/") && path.Clean(ref) == ref
}

// referencesStorage reports whether a client-supplied index card value points
// into the upload store. Only storeImage may set such references.
func referencesStorage(ref string) bool {
	if ref == "" {
		return false
	}
	cleaned := path.Clean(strings.ReplaceAll(ref, "\\", "/"))
	return cleaned == indexCardDir ||
		strings.HasPrefix(cleaned, indexCardDir+"/") ||
		strings.HasPrefix(cleaned, "/") ||
		cleaned == ".." || strings.HasPrefix(cleaned, "../")
}

func normalizeCaseRequest(req dto.CaseRequest) dto.CaseRequest {
	trim := strings.TrimSpace
	req.DocketNo = trim(req.DocketNo)
	req.Complainant = trim(req.Complainant)
	req.Respondent = trim(req.Respondent)
	req.AddressOfRespondent = trim(req.AddressOfRespondent)
	req.Offense = trim(req.Offense)
	req.DateOfCommission = trim(req.DateOfCommission)
	req.DateFiled = trim(req.DateFiled)
	req.ResolvingProsecutor = trim(req.ResolvingProsecutor)
	req.DateResolved = trim(req.DateResolved)
	req.RemarksDecision = trim(req.RemarksDecision)
	req.Penalty = trim(req.Penalty)
	req.CriminalCaseNo = trim(req.CriminalCaseNo)
	req.Branch = trim(req.Branch)
	req.DateFiledInCourt = trim(req.DateFiledInCourt)
	req.IndexCards = trim(req.IndexCards)
	if strings.EqualFold(req.IndexCards, models.NoIndexCard) || referencesStorage(req.IndexCards) {
		req.IndexCards = ""
	}
	if req.RemarksDecision == "" {
		req.RemarksDecision = string(models.DecisionPending)
	}
	return req
}

func applyCaseRequest(c *models.Case, req dto.CaseRequest) {
	c.DocketNo = req.DocketNo
	c.Complainant = req.Complainant
	c.Respondent = req.Respondent
	c.AddressOfRespondent = req.AddressOfRespondent
	c.Offense = req.Offense
	c.DateOfCommission = parseOptionalDate(req.DateOfCommission)
	c.DateFiled = parseOptionalDate(req.DateFiled)
	c.ResolvingProsecutor = req.ResolvingProsecutor
	c.DateResolved = parseOptionalDate(req.DateResolved)
	c.RemarksDecision = models.RemarksDecision(req.RemarksDecision)
	c.Penalty = req.Penalty
	c.CriminalCaseNo = req.CriminalCaseNo
	c.Branch = req.Branch
	c.DateFiledInCourt = parseOptionalDate(req.DateFiledInCourt)
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

func imageMimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
