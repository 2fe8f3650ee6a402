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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/training-ledger-api/api/swagger"
	"github.com/noah-isme/training-ledger-api/internal/handler"
	"github.com/noah-isme/training-ledger-api/internal/middleware"
	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/internal/repository"
	"github.com/noah-isme/training-ledger-api/internal/service"
	"github.com/noah-isme/training-ledger-api/migrations"
	"github.com/noah-isme/training-ledger-api/pkg/cache"
	"github.com/noah-isme/training-ledger-api/pkg/config"
	"github.com/noah-isme/training-ledger-api/pkg/database"
	"github.com/noah-isme/training-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/training-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/training-ledger-api/pkg/middleware/requestid"
)

// @title Training Ledger API
// @version 1.0.0
// @description Batch scheduling, enrollment and fee ledger for training centers
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, migrations.FS, "."); err != nil {
			logr.Sugar().Fatalw("migration failed", "error", err)
		}
		logr.Sugar().Infow("migrations applied")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report cache disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	tx := repository.NewTransactor(db, cfg.Database.TxMaxRetries, cfg.Database.TxRetryDelay,
		repository.WithRetryHook(metricsSvc.RecordTxRetry),
		repository.WithTxLogger(logr),
	)

	centerRepo := repository.NewTrainingCenterRepository(db)
	courseRepo := repository.NewCourseRepository(db, tx)
	studentRepo := repository.NewStudentRepository(db)
	batchRepo := repository.NewBatchRepository(db, tx)
	enrollmentRepo := repository.NewEnrollmentRepository(db, tx)
	feeRepo := repository.NewFeeRepository(db)
	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled && redisClient != nil)

	auditSvc := service.NewAuditService(auditRepo, cfg.Audit, logr)
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	scopeResolver := service.NewScopeResolver(centerRepo, studentRepo, logr)

	batchSvc := service.NewBatchService(batchRepo, courseRepo, centerRepo, auditSvc, cacheSvc, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, auditSvc, cacheSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, batchRepo, studentRepo, auditSvc, cacheSvc, metricsSvc, logr)
	feeSvc := service.NewFeeService(feeRepo, studentRepo, auditSvc, cacheSvc, metricsSvc, validate, logr)
	reportSvc := service.NewReportService(reportRepo, cacheSvc, cfg.Reports.CacheTTL, validate, logr)
	exportSvc := service.NewExportService(reportSvc, nil, nil, logr)

	lifecycleSvc := service.NewBatchLifecycleService(batchRepo, auditSvc, cacheSvc, metricsSvc, cfg.BatchLifecycle.Schedule, logr)
	if cfg.BatchLifecycle.Enabled {
		if err := lifecycleSvc.Start(ctx); err != nil {
			logr.Sugar().Fatalw("batch lifecycle scheduler failed to start", "error", err)
		}
		defer lifecycleSvc.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, cfg.APIPrefix))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	batchHandler := handler.NewBatchHandler(batchSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	reportHandler := handler.NewReportHandler(reportSvc, exportSvc)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleOperator)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc), middleware.Scope(scopeResolver), middleware.WithResponseMeta())
	{
		batches := api.Group("/batches")
		batches.GET("", batchHandler.List)
		batches.GET("/:id", batchHandler.Get)
		batches.POST("", staff, batchHandler.Create)
		batches.PUT("/:id", staff, batchHandler.Update)
		batches.PATCH("/:id/status", staff, batchHandler.UpdateStatus)
		batches.DELETE("/:id", staff, batchHandler.Delete)
		batches.POST("/:id/enrollments", staff, enrollmentHandler.Enroll)
		batches.DELETE("/:id/enrollments/:studentId", staff, enrollmentHandler.Unenroll)

		api.GET("/courses/:id", courseHandler.Get)
		api.DELETE("/courses/:id", adminOnly, courseHandler.Delete)

		api.GET("/enrollments", enrollmentHandler.List)

		fees := api.Group("/fees")
		fees.GET("", feeHandler.List)
		fees.GET("/:id", feeHandler.Get)
		fees.POST("", staff, feeHandler.Record)
		fees.POST("/:id/pay", staff, feeHandler.Pay)
		fees.POST("/:id/approve", adminOnly, feeHandler.Approve)
		fees.POST("/:id/reject", adminOnly, feeHandler.Reject)

		reports := api.Group("/reports")
		reports.GET("/summary", reportHandler.Summary)
		reports.GET("/summary/export", reportHandler.Export)
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

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
