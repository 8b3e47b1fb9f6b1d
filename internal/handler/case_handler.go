package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/internal/service"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/response"
)

const indexCardField = "indexCards"

type caseService interface {
	List(ctx context.Context, query dto.CaseQuery, status models.CaseStatus) ([]models.Case, *models.Pagination, error)
	Get(ctx context.Context, docketNo string) (*models.Case, error)
	Create(ctx context.Context, req dto.CaseRequest, image *service.ImageUpload, actorID string, meta models.RequestMeta) (*models.Case, error)
	Update(ctx context.Context, req dto.UpdateCaseRequest, image *service.ImageUpload, actorID string, meta models.RequestMeta) (*models.Case, error)
	Delete(ctx context.Context, req dto.DeleteCaseRequest, actorID string, role models.UserRole, meta models.RequestMeta) (*dto.CaseDeletionResult, error)
	Restore(ctx context.Context, req dto.RestoreCaseRequest, actorID string, meta models.RequestMeta) (*models.Case, error)
	IndexCardLink(ctx context.Context, docketNo string) (*dto.IndexCardLink, error)
	OpenIndexCard(ctx context.Context, token string) (*service.IndexCardDownload, error)
}

// CaseHandler exposes the case docket endpoints.
type CaseHandler struct {
	service        caseService
	maxUploadBytes int64
}

// NewCaseHandler constructs the handler. maxUploadBytes caps multipart bodies.
func NewCaseHandler(svc caseService, maxUploadBytes int64) *CaseHandler {
	return &CaseHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// List godoc
// @Summary List active cases
// @Tags Cases
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /cases [get]
func (h *CaseHandler) List(c *gin.Context) {
	h.list(c, models.CaseStatusActive)
}

// Search godoc
// @Summary Search active cases
// @Description Case-insensitive substring match on the text filters, exact remarks decision, inclusive filing date range.
// @Tags Cases
// @Produce json
// @Param q query string false "Match any text field"
// @Param docket_no query string false "Docket number"
// @Param complainant query string false "Complainant"
// @Param respondent query string false "Respondent"
// @Param offense query string false "Offense"
// @Param branch query string false "Branch"
// @Param resolving_prosecutor query string false "Resolving prosecutor"
// @Param criminal_case_no query string false "Criminal case number"
// @Param remarks_decision query string false "Pending, Dismissed or Convicted"
// @Param date_from query string false "Filed on or after (YYYY-MM-DD)"
// @Param date_to query string false "Filed on or before (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /get-case [get]
func (h *CaseHandler) Search(c *gin.Context) {
	h.list(c, models.CaseStatusActive)
}

// Terminated godoc
// @Summary List terminated cases
// @Tags Cases
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /deleted-cases [get]
func (h *CaseHandler) Terminated(c *gin.Context) {
	h.list(c, models.CaseStatusTerminated)
}

func (h *CaseHandler) list(c *gin.Context, status models.CaseStatus) {
	var query dto.CaseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid case search"))
		return
	}

	cases, pagination, err := h.service.List(c.Request.Context(), query, status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cases, pagination)
}

// Create godoc
// @Summary Add a case
// @Description Accepts JSON, or multipart form fields with an optional indexCards image.
// @Tags Cases
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.CaseRequest true "Case"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /add-case [post]
func (h *CaseHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CaseRequest
	var image *service.ImageUpload
	if isMultipart(c) {
		limitBody(c, h.maxUploadBytes)
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, h.multipartError(err))
			return
		}
		upload, closeFn, err := h.imageFromForm(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		defer closeFn()
		image = upload
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid case payload"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), req, image, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, created)
}

// Update godoc
// @Summary Update a case
// @Description The case is located by originalDocketNo when given, otherwise docketNo.
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body dto.UpdateCaseRequest true "Case"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /update-case [post]
func (h *CaseHandler) Update(c *gin.Context) {
	h.update(c, false)
}

// UpdateWithImage godoc
// @Summary Update a case and replace its index card
// @Tags Cases
// @Accept mpfd
// @Produce json
// @Param indexCards formData file false "Index card image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /update-case-with-image [post]
func (h *CaseHandler) UpdateWithImage(c *gin.Context) {
	h.update(c, true)
}

func (h *CaseHandler) update(c *gin.Context, requireMultipart bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateCaseRequest
	var image *service.ImageUpload
	switch {
	case isMultipart(c):
		limitBody(c, h.maxUploadBytes)
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, h.multipartError(err))
			return
		}
		upload, closeFn, err := h.imageFromForm(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		defer closeFn()
		image = upload
	case requireMultipart:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart/form-data expected"))
		return
	default:
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err, "invalid case payload"))
			return
		}
	}

	updated, err := h.service.Update(c.Request.Context(), req, image, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, updated, nil)
}

// Delete godoc
// @Summary Terminate or purge a case
// @Description Without permanent the active case is terminated. With permanent a terminated case is purged; Admin only.
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body dto.DeleteCaseRequest true "Docket number"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /delete-case [delete]
func (h *CaseHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.DeleteCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid delete payload"))
		return
	}

	result, err := h.service.Delete(c.Request.Context(), req, claims.UserID, claims.Role, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Restore godoc
// @Summary Restore a terminated case
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body dto.RestoreCaseRequest true "Docket number"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /restore-case [patch]
func (h *CaseHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RestoreCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid restore payload"))
		return
	}

	restored, err := h.service.Restore(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, restored, nil)
}

// IndexCardLink godoc
// @Summary Signed download link for a case index card
// @Tags Cases
// @Produce json
// @Param docket_no query string true "Docket number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /case-index-card [get]
func (h *CaseHandler) IndexCardLink(c *gin.Context) {
	link, err := h.service.IndexCardLink(c.Request.Context(), c.Query("docket_no"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadIndexCard godoc
// @Summary Download an index card via signed token
// @Tags Cases
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /index-cards/download [get]
func (h *CaseHandler) DownloadIndexCard(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.WithFields(nil, "token is required", map[string]string{"token": "is required"}))
		return
	}
	result, err := h.service.OpenIndexCard(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

// imageFromForm returns the optional index-card upload and a func closing it.
func (h *CaseHandler) imageFromForm(c *gin.Context) (*service.ImageUpload, func(), error) {
	noop := func() {}
	fileHeader, err := c.FormFile(indexCardField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, h.multipartError(err)
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, noop, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open index card")
	}
	upload := &service.ImageUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  src,
	}
	return upload, func() { _ = src.Close() }, nil
}

func (h *CaseHandler) multipartError(err error) error {
	if bodyTooLarge(err) {
		return appErrors.WithFields(nil, "upload is too large", map[string]string{indexCardField: fmt.Sprintf("must be at most %d bytes", h.maxUploadBytes)})
	}
	return invalidPayload(err, "invalid case form")
}
