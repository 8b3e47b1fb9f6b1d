package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docket-api/internal/dto"
	"github.com/noah-isme/docket-api/internal/models"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/response"
)

type purgeService interface {
	GetConfig(ctx context.Context) (*dto.AutoDeleteConfigResponse, error)
	Configure(ctx context.Context, req dto.ConfigureAutoDeleteRequest, actorID string, meta models.RequestMeta) (*dto.AutoDeleteConfigResponse, error)
}

// PurgeHandler manages the auto-purge schedule.
type PurgeHandler struct {
	service purgeService
}

// NewPurgeHandler constructs the handler.
func NewPurgeHandler(svc purgeService) *PurgeHandler {
	return &PurgeHandler{service: svc}
}

// Configure godoc
// @Summary Configure automatic purge of terminated cases
// @Description Persists the schedule and registers it with the scheduler. The response confirms whether the job is active and when it fires next.
// @Tags Purge
// @Accept json
// @Produce json
// @Param payload body dto.ConfigureAutoDeleteRequest true "Schedule"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /configure-auto-delete [post]
func (h *PurgeHandler) Configure(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ConfigureAutoDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid schedule payload"))
		return
	}

	res, err := h.service.Configure(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Get godoc
// @Summary Current auto-purge schedule
// @Tags Purge
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auto-delete-config [get]
func (h *PurgeHandler) Get(c *gin.Context) {
	res, err := h.service.GetConfig(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
