package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-enrollment-wizard/api/swagger"
	"github.com/noah-isme/sma-enrollment-wizard/internal/handler"
	"github.com/noah-isme/sma-enrollment-wizard/internal/middleware"
	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
	"github.com/noah-isme/sma-enrollment-wizard/internal/repository"
	"github.com/noah-isme/sma-enrollment-wizard/internal/service"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/cache"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/config"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/database"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/jobs"
	"github.com/noah-isme/sma-enrollment-wizard/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-enrollment-wizard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-enrollment-wizard/pkg/middleware/requestid"
)

// @title SMA Enrollment Wizard API
// @version 1.0.0
// @description Multi-step student enrollment wizard backed by the school catalog.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	loc := cfg.Wizard.Location()
	clock := func() time.Time { return time.Now().In(loc) }

	store := service.NewWizardSessionStore(clock)
	metrics := service.NewMetricsService(store.Count)

	catalogRepo := repository.NewCatalogRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	personRepo := repository.NewPersonRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)
	catalogSvc := service.NewCatalogService(catalogRepo, cacheSvc, cfg.Catalog.CacheTTL, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, catalogRepo, nil, logr)

	audit := service.NewAuditDispatcher(auditRepo, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 64,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	audit.Start(ctx)
	defer audit.Stop()

	validate, trans := service.NewWizardValidate()
	wizardSvc := service.NewWizardService(service.WizardDeps{
		Store:       store,
		Validator:   service.NewStepValidator(validate, trans, clock),
		Catalog:     catalogSvc,
		Enrollments: enrollmentSvc,
		Existing:    enrollmentRepo,
		People:      personRepo,
		Audit:       audit,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Logger:      logr,
		Now:         clock,
	})
	exportSvc := service.NewExportService(wizardSvc, logr, nil, nil)
	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   30 * time.Second,
	})

	go store.RunSweeper(ctx, cfg.Wizard.SweepInterval, cfg.Wizard.SessionTTL, func(removed int) {
		metrics.ObserveSweep(removed)
		if removed > 0 {
			logr.Info("idle wizard sessions swept", zap.Int("removed", removed), zap.Int("active", store.Count()))
		}
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
		"postgres": db,
		"redis":    handler.PingFunc(cacheRepo.Ping),
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc), middleware.RequireRoles(middleware.EnrollmentRoles...))
	api.GET("/metrics/summary", metricsHandler.Summary)
	handler.RegisterWizardRoutes(api, handler.NewWizardHandler(wizardSvc, exportSvc),
		middleware.Audit(audit, models.AuditActionGuardianLookup, "person", "document"))

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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
