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
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/swim-eval-api/internal/handler"
	"github.com/noah-isme/swim-eval-api/internal/middleware"
	"github.com/noah-isme/swim-eval-api/internal/models"
	"github.com/noah-isme/swim-eval-api/internal/repository"
	"github.com/noah-isme/swim-eval-api/internal/service"
	"github.com/noah-isme/swim-eval-api/pkg/cache"
	"github.com/noah-isme/swim-eval-api/pkg/config"
	"github.com/noah-isme/swim-eval-api/pkg/database"
	"github.com/noah-isme/swim-eval-api/pkg/export"
	"github.com/noah-isme/swim-eval-api/pkg/logger"
	reqidmiddleware "github.com/noah-isme/swim-eval-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Evolution.CacheEnabled || cfg.Notifications.Enabled {
		if redisClient, err = cache.NewRedis(ctx, cfg.Redis); err != nil {
			logr.Warn("redis unavailable, analytics cache and notifications disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}
	validate := validator.New()

	var notifier service.Notifier = service.NopNotifier{}
	if cfg.Notifications.Enabled && redisClient != nil {
		queued := service.NewQueueNotifier(cacheRepo, cfg.Notifications.Channel, cfg.Notifications.Workers, cfg.Notifications.Retries, metrics, logr)
		if err := metrics.RegisterQueue("notifications", queued); err != nil {
			logr.Warn("notification queue metrics not registered", zap.Error(err))
		}
		queued.Start(ctx)
		defer queued.Stop()
		notifier = queued
	}

	txManager := repository.NewTxManager(db)
	studentRepo := repository.NewStudentRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	evolutionRepo := repository.NewEvolutionRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Evolution.CacheTTL, logr, cfg.Evolution.CacheEnabled && redisClient != nil)
	evaluationSvc := service.NewEvaluationService(evaluationRepo, txManager, cacheSvc, notifier, metrics, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, txManager, notifier, validate, logr)
	evolutionSvc := service.NewEvolutionService(evolutionRepo, studentRepo, cacheSvc, metrics, cfg.Evolution, logr)
	exportSvc := service.NewExportService(evolutionSvc, studentRepo, export.NewRenderer(), logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}

	metricsHandler := handler.NewMetricsHandler(metrics.Handler(), db, logr)
	r.GET("/health", metricsHandler.Health)
	if metrics != nil {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		verifier:    middleware.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		evaluations: handler.NewEvaluationHandler(evaluationSvc),
		students:    handler.NewStudentHandler(studentSvc),
		evolution:   handler.NewEvolutionHandler(evolutionSvc, exportSvc),
		logger:      logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logr.Info("server stopped")
	return nil
}

type routeDeps struct {
	verifier    *middleware.TokenVerifier
	evaluations *handler.EvaluationHandler
	students    *handler.StudentHandler
	evolution   *handler.EvolutionHandler
	logger      *zap.Logger
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	writers := middleware.RequireRoles(models.RoleAdmin, models.RoleProfessor)
	readers := middleware.RBAC(string(models.RoleAdmin), string(models.RoleProfessor), middleware.SelfStudent)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.logger, action, resource)
	}

	api.Use(middleware.JWT(deps.verifier), middleware.WithResponseMeta())

	evaluations := api.Group("/evaluations")
	evaluations.GET("", deps.evaluations.List)
	evaluations.GET("/:id", deps.evaluations.Get)
	evaluations.POST("", writers, audit("create", "evaluation"), deps.evaluations.Create)
	evaluations.PUT("/:id", writers, audit("update", "evaluation"), deps.evaluations.Update)
	evaluations.DELETE("/:id", writers, audit("delete", "evaluation"), deps.evaluations.Delete)

	api.POST("/students", writers, audit("create", "student"), deps.students.Create)
	students := api.Group("/students/:id", readers)
	students.GET("", deps.students.Get)
	students.GET("/level-history", deps.students.LevelHistory)
	students.GET("/evolution", deps.evolution.Data)
	students.GET("/evolution/trends", deps.evolution.Trends)
	students.GET("/evolution/metrics", deps.evolution.Metrics)
	students.GET("/evolution/comparative", deps.evolution.Comparative)
	students.GET("/evolution/summary", deps.evolution.Summary)
	students.GET("/evolution/export", deps.evolution.Export)
}
