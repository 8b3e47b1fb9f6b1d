package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docket-api/internal/models"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
)

var clerkClaims = &models.JWTClaims{UserID: "clerk-1", Role: models.RoleClerk}

func multipartCaseBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if image != nil {
		part, err := writer.CreateFormFile(indexCardField, "card.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestCaseHandlerCreateJSON(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/add-case", strings.NewReader(`{"docketNo":"DOC-1","respondent":"Juan"}`))
	req.Header.Set("Content-Type", "application/json")
	c, rec := newTestContext(req, clerkClaims)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "DOC-1", svc.createReq.DocketNo)
	assert.Equal(t, "Juan", svc.createReq.Respondent)
	assert.Equal(t, "clerk-1", svc.actorID)
	assert.Empty(t, svc.imageName)
}

func TestCaseHandlerCreateMultipartWithImage(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 1<<20)

	body, contentType := multipartCaseBody(t, map[string]string{"docketNo": "DOC-2", "branch": "Branch 5"}, []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/add-case", body)
	req.Header.Set("Content-Type", contentType)
	c, rec := newTestContext(req, clerkClaims)

	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "DOC-2", svc.createReq.DocketNo)
	assert.Equal(t, "Branch 5", svc.createReq.Branch)
	assert.Equal(t, "card.png", svc.imageName)
	assert.Equal(t, []byte("png-bytes"), svc.imageContent)
}

func TestCaseHandlerCreateRejectsOversizedUpload(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 64)

	body, contentType := multipartCaseBody(t, map[string]string{"docketNo": "DOC-3"}, bytes.Repeat([]byte("x"), 512))
	req := httptest.NewRequest(http.MethodPost, "/add-case", body)
	req.Header.Set("Content-Type", contentType)
	c, rec := newTestContext(req, clerkClaims)

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.createReq.DocketNo)
}

func TestCaseHandlerSurfacesServiceErrors(t *testing.T) {
	svc := &fakeCaseService{err: appErrors.Clone(appErrors.ErrDatabaseUnavailable, "")}
	h := NewCaseHandler(svc, 1<<20)

	c, rec := newTestContext(httptest.NewRequest(http.MethodGet, "/cases", nil), clerkClaims)
	h.List(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "DATABASE_UNAVAILABLE", envelope.Error.Code)
	assert.Equal(t, "database unavailable", envelope.Error.Message)
}

func TestCaseHandlerSearchBindsFilters(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 1<<20)

	target := "/get-case?docket_no=DOC&respondent=cruz&date_from=2024-01-01&date_to=2024-02-01&page=2"
	c, rec := newTestContext(httptest.NewRequest(http.MethodGet, target, nil), clerkClaims)
	h.Search(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CaseStatusActive, svc.listStatus)
	assert.Equal(t, "DOC", svc.listQuery.DocketNo)
	assert.Equal(t, "cruz", svc.listQuery.Respondent)
	assert.Equal(t, "2024-01-01", svc.listQuery.DateFrom)
	assert.Equal(t, "2024-02-01", svc.listQuery.DateTo)
	assert.Equal(t, 2, svc.listQuery.Page)
	assert.Equal(t, "[]", string(decodeEnvelope(t, rec).Data))
}

func TestCaseHandlerTerminatedListsTerminated(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 1<<20)

	c, _ := newTestContext(httptest.NewRequest(http.MethodGet, "/deleted-cases", nil), clerkClaims)
	h.Terminated(c)

	assert.Equal(t, models.CaseStatusTerminated, svc.listStatus)
}

func TestCaseHandlerDeletePassesRole(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 1<<20)

	req := httptest.NewRequest(http.MethodDelete, "/delete-case", strings.NewReader(`{"docket_no":"DOC-4","permanent":true}`))
	req.Header.Set("Content-Type", "application/json")
	c, rec := newTestContext(req, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	h.Delete(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DOC-4", svc.deleteReq.DocketNo)
	assert.True(t, svc.deleteReq.Permanent)
	assert.Equal(t, models.RoleAdmin, svc.deleteRole)
}

func TestCaseHandlerRestore(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 1<<20)

	req := httptest.NewRequest(http.MethodPatch, "/restore-case", strings.NewReader(`{"docket_no":"DOC-5"}`))
	req.Header.Set("Content-Type", "application/json")
	c, rec := newTestContext(req, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	h.Restore(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DOC-5", svc.restoreReq.DocketNo)
}

func TestCaseHandlerUpdateWithImageRequiresMultipart(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/update-case-with-image", strings.NewReader(`{"docketNo":"DOC-6"}`))
	req.Header.Set("Content-Type", "application/json")
	c, rec := newTestContext(req, clerkClaims)

	h.UpdateWithImage(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.updateReq.DocketNo)
}

func TestCaseHandlerUpdateMultipartKeepsOriginalDocket(t *testing.T) {
	svc := &fakeCaseService{}
	h := NewCaseHandler(svc, 1<<20)

	body, contentType := multipartCaseBody(t, map[string]string{"originalDocketNo": "DOC-7", "docketNo": "DOC-7A"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/update-case-with-image", body)
	req.Header.Set("Content-Type", contentType)
	c, rec := newTestContext(req, clerkClaims)

	h.UpdateWithImage(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DOC-7", svc.updateReq.LookupDocketNo())
	assert.Equal(t, "DOC-7A", svc.updateReq.DocketNo)
	assert.Empty(t, svc.imageName)
}

func TestCaseHandlerDownloadIndexCard(t *testing.T) {
	h := NewCaseHandler(&fakeCaseService{}, 1<<20)

	c, rec := newTestContext(httptest.NewRequest(http.MethodGet, "/index-cards/download", nil), nil)
	h.DownloadIndexCard(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(httptest.NewRequest(http.MethodGet, "/index-cards/download?token=bad", nil), nil)
	h.DownloadIndexCard(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCaseHandlerCreateRequiresClaims(t *testing.T) {
	h := NewCaseHandler(&fakeCaseService{}, 1<<20)

	c, rec := newTestContext(httptest.NewRequest(http.MethodPost, "/add-case", strings.NewReader(`{}`)), nil)
	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
