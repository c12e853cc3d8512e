package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusrooms/booking-api/api/swagger"
	"github.com/campusrooms/booking-api/internal/handler"
	"github.com/campusrooms/booking-api/internal/middleware"
	"github.com/campusrooms/booking-api/internal/models"
	"github.com/campusrooms/booking-api/internal/repository"
	"github.com/campusrooms/booking-api/internal/service"
	"github.com/campusrooms/booking-api/pkg/cache"
	"github.com/campusrooms/booking-api/pkg/config"
	"github.com/campusrooms/booking-api/pkg/database"
	"github.com/campusrooms/booking-api/pkg/jobs"
	"github.com/campusrooms/booking-api/pkg/logger"
	corsmiddleware "github.com/campusrooms/booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusrooms/booking-api/pkg/middleware/requestid"
	"github.com/campusrooms/booking-api/pkg/storage"
)

// @title Campus Rooms Booking API
// @version 1.0.0
// @description Room reservation and approval workflow for campus departments
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	exportRepo := repository.NewExportRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && cacheRepo != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campusrooms-booking-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, roomRepo, userRepo, cacheSvc, metricsSvc, validate, logr, cfg.Bookings)
	catalogSvc := service.NewCatalogService(roomRepo, reviewRepo, bookingRepo, userRepo, cacheSvc, validate, logr, cfg.Catalog)
	reviewSvc := service.NewReviewService(reviewRepo, roomRepo, cacheSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	roomHandler := handler.NewRoomHandler(catalogSvc, bookingSvc, reviewSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	authorized := api.Group("")
	authorized.Use(middleware.JWT(authSvc))
	{
		authorized.GET("/catalog", roomHandler.Snapshot)
		authorized.GET("/departments", roomHandler.Departments)

		rooms := authorized.Group("/rooms")
		{
			rooms.GET("", roomHandler.List)
			rooms.GET("/:id", roomHandler.Get)
			rooms.GET("/:id/bookings", roomHandler.Bookings)
			rooms.GET("/:id/availability", roomHandler.Availability)
			rooms.GET("/:id/availability/week", roomHandler.WeekAvailability)
			rooms.GET("/:id/reviews", roomHandler.Reviews)
			rooms.POST("/:id/reviews", roomHandler.CreateReview)

			admin := middleware.RequireRoles(models.RoleAdmin)
			rooms.POST("", admin, roomHandler.Create)
			rooms.PUT("/:id", admin, roomHandler.Update)
			rooms.DELETE("/:id", admin, roomHandler.Delete)
		}

		bookings := authorized.Group("/bookings")
		{
			bookings.GET("", bookingHandler.List)
			bookings.GET("/:id", bookingHandler.Get)
			bookings.POST("", middleware.RequireRoles(models.RoleFaculty), bookingHandler.Create)
			bookings.PATCH("/:id/status", middleware.RequireRoles(models.RoleIncharge, models.RoleAdmin), bookingHandler.Decide)
		}

		users := authorized.Group("/users")
		users.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			users.GET("", userHandler.List)
			users.GET("/:id", userHandler.Get)
			users.POST("", userHandler.Create)
			users.PUT("/:id", userHandler.Update)
			users.DELETE("/:id", userHandler.Delete)
		}

		authorized.GET("/metrics/summary", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Exports.Enabled {
		exportQueue, exportSvc, err := buildExports(rootCtx, cfg, exportRepo, bookingRepo, logr)
		if err != nil {
			logr.Sugar().Fatalw("failed to init exports", "error", err)
		}
		defer exportQueue.Stop()

		exportHandler := handler.NewExportHandler(exportSvc)
		exports := api.Group("/exports")
		{
			exports.GET("/download/:token", exportHandler.Download)

			guarded := exports.Group("")
			guarded.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleIncharge, models.RoleAdmin))
			guarded.POST("", middleware.Audit(userRepo, models.AuditActionExportRequest, "export_job"), exportHandler.Create)
			guarded.GET("/:id", exportHandler.Status)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// buildExports wires the export pipeline: job store, worker queue,
// filesystem storage, and signed download URLs.
func buildExports(ctx context.Context, cfg *config.Config, exportRepo *repository.ExportRepository, bookingRepo *repository.BookingRepository, logr *zap.Logger) (*jobs.Queue, *service.ExportService, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	// The queue handler and the service reference each other, so the
	// worker is bound through a closure after construction.
	var worker *service.ExportWorker
	queue := jobs.NewQueue("booking-exports", func(ctx context.Context, job jobs.Job) error {
		return worker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})

	exportSvc := service.NewExportService(exportRepo, bookingRepo, queue, store, signer, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		MaxRetries:      cfg.Exports.WorkerRetries,
	}, logr)
	worker = service.NewExportWorker(exportRepo, exportSvc, cfg.Exports.WorkerRetries, logr)

	queue.Start(ctx)
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)

	return queue, exportSvc, nil
}
