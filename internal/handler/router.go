package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docket-api/internal/middleware"
	"github.com/noah-isme/docket-api/internal/models"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Cases     *CaseHandler
	Excel     *ExcelHandler
	Purge     *PurgeHandler
	Dashboard *DashboardHandler
	Metrics   *MetricsHandler
}

// RegisterRoutes mounts every endpoint. authn must authenticate the caller and
// store its claims; role gates are applied per route.
func RegisterRoutes(r gin.IRouter, h Handlers, authn gin.HandlerFunc) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleClerk)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	r.POST("/api/auth/login", h.Auth.Login)
	r.POST("/api/auth/refresh", h.Auth.Refresh)
	// The signed token is the credential so the link works from an <img> tag.
	r.GET("/index-cards/download", h.Cases.DownloadIndexCard)

	secured := r.Group("/", authn)

	secured.GET("/cases", h.Cases.List)
	secured.GET("/get-case", h.Cases.Search)
	secured.GET("/case-index-card", h.Cases.IndexCardLink)
	secured.POST("/add-case", editors, h.Cases.Create)
	secured.POST("/update-case", editors, h.Cases.Update)
	secured.POST("/update-case-with-image", editors, h.Cases.UpdateWithImage)
	secured.DELETE("/delete-case", editors, h.Cases.Delete)
	secured.GET("/deleted-cases", editors, h.Cases.Terminated)
	secured.PATCH("/restore-case", admin, h.Cases.Restore)

	secured.POST("/configure-auto-delete", admin, h.Purge.Configure)
	secured.GET("/auto-delete-config", admin, h.Purge.Get)

	secured.GET("/download-excel", h.Excel.Download)

	api := secured.Group("/api")
	api.GET("/excel/download", h.Excel.Download)
	api.POST("/excel/upload", editors, h.Excel.Upload)

	api.GET("/auth/me", h.Auth.Me)
	api.POST("/auth/logout", h.Auth.Logout)
	api.POST("/auth/change-password", h.Auth.ChangePassword)
	api.POST("/auth/register", admin, h.Users.Register)

	api.GET("/users", admin, h.Users.List)
	api.GET("/user/:id", admin, h.Users.Get)
	api.PUT("/user/:id/role", admin, h.Users.UpdateRole)
	api.PUT("/user/:id/toggle-status", admin, h.Users.ToggleStatus)
	api.DELETE("/user/:id", admin, h.Users.Delete)

	api.GET("/dashboard", h.Dashboard.Mine)
	api.GET("/dashboard/admin", admin, h.Dashboard.Admin)
	api.GET("/dashboard/clerk", editors, h.Dashboard.Clerk)
	api.GET("/dashboard/staff", staff, h.Dashboard.Staff)
}
