package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docket-api/internal/middleware"
	"github.com/noah-isme/docket-api/internal/models"
	appErrors "github.com/noah-isme/docket-api/pkg/errors"
	"github.com/noah-isme/docket-api/pkg/response"
)

type dashboardService interface {
	ForRole(ctx context.Context, role models.UserRole) (interface{}, bool, error)
	Admin(ctx context.Context) (*models.AdminDashboard, bool, error)
	Clerk(ctx context.Context) (*models.ClerkDashboard, bool, error)
	Staff(ctx context.Context) (*models.StaffDashboard, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Mine godoc
// @Summary Dashboard for the caller's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/dashboard [get]
func (h *DashboardHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.respond(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.ForRole(ctx, claims.Role)
	})
}

// Admin godoc
// @Summary Admin dashboard
// @Description Case totals, accounts per role, the purge schedule and a live system metrics snapshot.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	h.respond(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.Admin(ctx)
	})
}

// Clerk godoc
// @Summary Clerk dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/dashboard/clerk [get]
func (h *DashboardHandler) Clerk(c *gin.Context) {
	h.respond(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.Clerk(ctx)
	})
}

// Staff godoc
// @Summary Staff dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/dashboard/staff [get]
func (h *DashboardHandler) Staff(c *gin.Context) {
	h.respond(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.Staff(ctx)
	})
}

func (h *DashboardHandler) respond(c *gin.Context, load func(ctx context.Context) (interface{}, bool, error)) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
