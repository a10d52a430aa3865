package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/stitchworks/garment-docs-api/api/swagger"
	"github.com/stitchworks/garment-docs-api/internal/handler"
	"github.com/stitchworks/garment-docs-api/internal/middleware"
	"github.com/stitchworks/garment-docs-api/internal/models"
	"github.com/stitchworks/garment-docs-api/internal/repository"
	"github.com/stitchworks/garment-docs-api/internal/service"
	"github.com/stitchworks/garment-docs-api/pkg/cache"
	"github.com/stitchworks/garment-docs-api/pkg/config"
	"github.com/stitchworks/garment-docs-api/pkg/database"
	"github.com/stitchworks/garment-docs-api/pkg/jobs"
	"github.com/stitchworks/garment-docs-api/pkg/logger"
	corsmiddleware "github.com/stitchworks/garment-docs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/stitchworks/garment-docs-api/pkg/middleware/requestid"
	"github.com/stitchworks/garment-docs-api/pkg/storage"
)

// @title Garment Docs API
// @version 1.0.0
// @description Document approval, section access, and QC inspection service
// @BasePath /api/v1
// @schemes http

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	inspRepo := repository.NewInspectionRepository(db)
	exportRepo := repository.NewExportRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	docSvc := service.NewDocumentService(docRepo, userRepo, cacheSvc, logr)
	workflowSvc := service.NewWorkflowService(docRepo, userRepo, cacheSvc, metricsSvc, logr)

	thresholds := models.DefectThresholds{
		CriticalMaxAllowed: cfg.QC.CriticalMaxAllowed,
		MajorMaxAllowed:    cfg.QC.MajorMaxAllowed,
		MinorMaxAllowed:    cfg.QC.MinorMaxAllowed,
	}
	inspSvc := service.NewInspectionService(inspRepo, docRepo, userRepo, metricsSvc, thresholds, cfg.QC.DefaultTolerance, logr)
	measurementSvc := service.NewMeasurementService(inspRepo, docRepo, cfg.QC.DefaultTolerance, logr)
	aqlSvc := service.NewAQLService(inspRepo)

	var exportJobSvc *service.ExportJobService
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(docRepo, inspRepo, exportStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, nil, nil)

		worker := service.NewExportWorker(exportRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
		queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		exportJobSvc = service.NewExportJobService(exportRepo, docRepo, queue, exportSvc, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	docHandler := handler.NewDocumentHandler(docSvc, workflowSvc)
	inspHandler := handler.NewInspectionHandler(inspSvc, measurementSvc, aqlSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/change-password", authHandler.ChangePassword)

	users := authed.Group("/users")
	users.GET("/me/access", userHandler.EffectiveAccess)
	users.GET("", middleware.RequireSection(models.SectionUserManagement, models.AccessView), userHandler.List)
	users.GET("/:id", middleware.RequireSection(models.SectionUserManagement, models.AccessView), userHandler.Get)
	users.POST("", middleware.RequireSection(models.SectionUserManagement, models.AccessFull), userHandler.Create)
	users.PUT("/:id", middleware.RequireSection(models.SectionUserManagement, models.AccessFull), userHandler.Update)
	users.DELETE("/:id", middleware.RequireSection(models.SectionUserManagement, models.AccessFull), userHandler.Delete)
	users.PUT("/:id/access", middleware.RequireSection(models.SectionRoleManagement, models.AccessFull), userHandler.UpdateAccess)

	documents := authed.Group("/documents")
	documents.GET("", docHandler.List)
	documents.GET("/:id", docHandler.Get)
	documents.POST("", docHandler.Create)
	documents.PUT("/:id", docHandler.Update)
	documents.DELETE("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), docHandler.Delete)
	documents.POST("/:id/workflow", docHandler.Transition)
	documents.GET("/:id/workflow/history", docHandler.History)
	documents.GET("/:id/workflow/actions", docHandler.AvailableActions)

	inspections := authed.Group("/inspections")
	inspections.Use(middleware.RequireSection(models.SectionQCInspect, models.AccessView))
	inspections.GET("", inspHandler.ListByDocument)
	inspections.GET("/:id", inspHandler.Get)
	inspections.GET("/:id/table/evaluation", inspHandler.EvaluateTable)
	inspections.POST("/:id/aql", inspHandler.EvaluateAQL)

	inspectionEdits := authed.Group("/inspections")
	inspectionEdits.Use(middleware.RequireSection(models.SectionQCInspect, models.AccessFull))
	inspectionEdits.POST("", inspHandler.Create)
	inspectionEdits.POST("/:id/table", inspHandler.ApplyTableOp)
	inspectionEdits.PUT("/:id/defects", inspHandler.SetDefects)
	inspectionEdits.PUT("/:id/thresholds", inspHandler.SetThresholds)
	inspectionEdits.PUT("/:id/result", inspHandler.SetResult)
	inspectionEdits.POST("/:id/judgement", inspHandler.Recompute)
	inspectionEdits.POST("/:id/clone", inspHandler.Clone)
	inspectionEdits.DELETE("/:id", inspHandler.Delete)

	if exportJobSvc != nil {
		exportHandler := handler.NewExportHandler(exportJobSvc)
		exports := authed.Group("/exports")
		exports.POST("", middleware.Audit(userRepo, models.AuditActionExportCreate, "exports"), exportHandler.Create)
		exports.GET("/status/:id", exportHandler.Status)
		// download is authorized by the signed token alone
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
