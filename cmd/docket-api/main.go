package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/docket-api/api/swagger"
	"github.com/noah-isme/docket-api/internal/handler"
	"github.com/noah-isme/docket-api/internal/middleware"
	"github.com/noah-isme/docket-api/internal/repository"
	"github.com/noah-isme/docket-api/internal/service"
	"github.com/noah-isme/docket-api/pkg/cache"
	"github.com/noah-isme/docket-api/pkg/config"
	"github.com/noah-isme/docket-api/pkg/database"
	"github.com/noah-isme/docket-api/pkg/export"
	"github.com/noah-isme/docket-api/pkg/jobs"
	"github.com/noah-isme/docket-api/pkg/logger"
	"github.com/noah-isme/docket-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/docket-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/docket-api/pkg/middleware/requestid"
	"github.com/noah-isme/docket-api/pkg/storage"
	"github.com/noah-isme/docket-api/pkg/validation"
)

// @title Case Docket API
// @version 1.0.0
// @description Case docketing for the prosecutor's office: cases, terminated case lifecycle, spreadsheet import/export, accounts and dashboards.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without cache and purge lock", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validation.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	scheduleRepo := repository.NewPurgeScheduleRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	lockRepo := repository.NewLockRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	caseSvc := service.NewCaseService(caseRepo, files, signer, cacheSvc, validate, logr, service.CaseServiceConfig{
		MaxImageBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:  cfg.Uploads.AllowedMIMEs,
	})
	excelSvc := service.NewExcelService(caseSvc, caseRepo, caseRepo, metricsSvc,
		export.NewXLSXExporter(cfg.Exports.SheetName), export.NewCSVExporter(export.WithByteOrderMark()), export.NewPDFExporter(),
		service.ExcelConfig{MaxRows: cfg.Exports.MaxImportRows}, logr)

	mail := mailer.NewSendGridMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress, logr)
	notifySvc := service.NewNotificationService(userRepo, mail, metricsSvc, logr)
	notifyQueue := jobs.NewQueue("notifications", notifySvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.Retries,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
		OnResult:   notifySvc.OnResult,
	})

	location, err := time.LoadLocation(cfg.Purge.Timezone)
	if err != nil {
		logr.Warn("invalid purge timezone, using local time", zap.String("timezone", cfg.Purge.Timezone), zap.Error(err))
		location = time.Local
	}
	purgeSvc := service.NewPurgeService(scheduleRepo, caseRepo, files, lockRepo, cacheSvc, metricsSvc, notifyQueue, validate, logr, service.PurgeServiceConfig{
		Enabled:      cfg.Purge.Enabled,
		Location:     location,
		LockTTL:      cfg.Purge.LockTTL,
		RunTimeout:   cfg.Purge.RunTimeout,
		NotifyAdmins: cfg.Purge.NotifyAdmin,
	})

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Cases:     caseRepo,
		Accounts:  userRepo,
		Schedules: scheduleRepo,
		Metrics:   metricsSvc,
		Cache:     cacheSvc,
		Logger:    logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:    cfg.Dashboard.CacheTTL,
			RecentLimit: cfg.Dashboard.RecentLimit,
		},
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifyQueue.Start(rootCtx)
	if err := purgeSvc.Start(rootCtx); err != nil {
		logr.Error("failed to start purge scheduler", zap.Error(err))
	}

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = cache.Ping(redisClient)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	uploadLimit := cfg.Uploads.MaxFileSizeBytes + 1<<20
	handler.RegisterRoutes(r, handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Users:     handler.NewUserHandler(userSvc),
		Cases:     handler.NewCaseHandler(caseSvc, uploadLimit),
		Excel:     handler.NewExcelHandler(excelSvc, cfg.Exports.MaxImportBytes),
		Purge:     handler.NewPurgeHandler(purgeSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Metrics:   handler.NewMetricsHandler(metricsSvc, checks),
	}, middleware.JWT(authSvc))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	purgeSvc.Stop()
	notifyQueue.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
