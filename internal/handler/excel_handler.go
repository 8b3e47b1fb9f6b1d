package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/internal/service"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/response"
)

type excelService interface {
	Import(ctx context.Context, filename string, r io.Reader, actorID string, meta models.RequestMeta) (*dto.ImportResult, error)
	Export(ctx context.Context, query dto.ExportQuery) (*service.ExportFile, error)
}

// ExcelHandler serves spreadsheet import and export.
type ExcelHandler struct {
	service        excelService
	maxUploadBytes int64
}

// NewExcelHandler constructs the handler.
func NewExcelHandler(svc excelService, maxUploadBytes int64) *ExcelHandler {
	return &ExcelHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// Upload godoc
// @Summary Import cases from a spreadsheet
// @Description The first row must hold the docket column headers. Rows that fail are reported as "Row N: ..." and do not stop the import.
// @Tags Excel
// @Accept mpfd
// @Produce json
// @Param file formData file true ".xlsx or .csv file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /api/excel/upload [post]
func (h *ExcelHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limitBody(c, h.maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		switch {
		case bodyTooLarge(err):
			response.Error(c, appErrors.WithFields(nil, "upload is too large", map[string]string{"file": fmt.Sprintf("must be at most %d bytes", h.maxUploadBytes)}))
		case errors.Is(err, http.ErrMissingFile):
			response.Error(c, appErrors.WithFields(nil, "file is required", map[string]string{"file": "is required"}))
		default:
			response.Error(c, invalidPayload(err, "invalid upload"))
		}
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.service.Import(c.Request.Context(), fileHeader.Filename, src, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Export cases
// @Tags Excel
// @Produce octet-stream
// @Param format query string false "xlsx (default), csv or pdf"
// @Param status query string false "active (default), terminated or all"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /api/excel/download [get]
func (h *ExcelHandler) Download(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid export query"))
		return
	}

	file, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
