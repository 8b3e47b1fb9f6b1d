package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/middleware"
	"github.com/noah-isme/docket-api/internal/models"
	"github.com/noah-isme/docket-api/internal/service"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func newTestContext(req *http.Request, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

type fakeCaseService struct {
	listStatus   models.CaseStatus
	listQuery    dto.CaseQuery
	createReq    dto.CaseRequest
	updateReq    dto.UpdateCaseRequest
	deleteReq    dto.DeleteCaseRequest
	deleteRole   models.UserRole
	restoreReq   dto.RestoreCaseRequest
	actorID      string
	imageName    string
	imageContent []byte
	err          error
}

func (f *fakeCaseService) List(_ context.Context, query dto.CaseQuery, status models.CaseStatus) ([]models.Case, *models.Pagination, error) {
	f.listQuery = query
	f.listStatus = status
	if f.err != nil {
		return nil, nil, f.err
	}
	return []models.Case{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeCaseService) Get(_ context.Context, docketNo string) (*models.Case, error) {
	return &models.Case{DocketNo: docketNo}, f.err
}

func (f *fakeCaseService) Create(_ context.Context, req dto.CaseRequest, image *service.ImageUpload, actorID string, _ models.RequestMeta) (*models.Case, error) {
	f.createReq = req
	f.actorID = actorID
	f.captureImage(image)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Case{DocketNo: req.DocketNo, IsActive: true}, nil
}

func (f *fakeCaseService) Update(_ context.Context, req dto.UpdateCaseRequest, image *service.ImageUpload, actorID string, _ models.RequestMeta) (*models.Case, error) {
	f.updateReq = req
	f.actorID = actorID
	f.captureImage(image)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Case{DocketNo: req.DocketNo, IsActive: true}, nil
}

func (f *fakeCaseService) Delete(_ context.Context, req dto.DeleteCaseRequest, actorID string, role models.UserRole, _ models.RequestMeta) (*dto.CaseDeletionResult, error) {
	f.deleteReq = req
	f.deleteRole = role
	f.actorID = actorID
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CaseDeletionResult{DocketNo: req.DocketNo, Permanent: req.Permanent}, nil
}

func (f *fakeCaseService) Restore(_ context.Context, req dto.RestoreCaseRequest, actorID string, _ models.RequestMeta) (*models.Case, error) {
	f.restoreReq = req
	f.actorID = actorID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Case{DocketNo: req.DocketNo, IsActive: true}, nil
}

func (f *fakeCaseService) IndexCardLink(_ context.Context, docketNo string) (*dto.IndexCardLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.IndexCardLink{DocketNo: docketNo, URL: "/index-cards/download?token=abc"}, nil
}

func (f *fakeCaseService) OpenIndexCard(context.Context, string) (*service.IndexCardDownload, error) {
	return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
}

func (f *fakeCaseService) captureImage(image *service.ImageUpload) {
	if image == nil {
		return
	}
	f.imageName = image.Filename
	f.imageContent, _ = io.ReadAll(image.Content)
}
