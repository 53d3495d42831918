package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/leadboard/leadboard/config"
	"github.com/leadboard/leadboard/pkg/api/handlers"
	"github.com/leadboard/leadboard/pkg/cache"
	"github.com/leadboard/leadboard/pkg/crmsync"
	"github.com/leadboard/leadboard/pkg/export"
	"github.com/leadboard/leadboard/pkg/importer"
	"github.com/leadboard/leadboard/pkg/jobs"
	"github.com/leadboard/leadboard/pkg/leads"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/metrics"
	custommiddleware "github.com/leadboard/leadboard/pkg/middleware"
	"github.com/leadboard/leadboard/pkg/notify"
	"github.com/leadboard/leadboard/pkg/optimistic"
	"github.com/leadboard/leadboard/pkg/ordering"
	"github.com/leadboard/leadboard/pkg/radar"
	"github.com/leadboard/leadboard/pkg/stages"
	"github.com/leadboard/leadboard/pkg/store"
	"github.com/leadboard/leadboard/pkg/tableconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("configuration loaded", "environment", cfg.APIEnvironment)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			appLogger.Warn("failed to initialize Sentry", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Services
	notifier := notify.NewLog(appLogger)
	leadService := leads.NewService(db, redisClient, appLogger, cfg.DefaultPhoneRegion)
	stageService := stages.NewService(db, appLogger)
	configService := tableconfig.NewService(db, redisClient, appLogger)
	orderingController := ordering.NewController(db, configService, appLogger)
	boardManager := optimistic.NewManager(db, notifier, appLogger)
	leadService.AttachBoards(boardManager)
	stageService.AttachBoards(boardManager)
	importService := importer.NewService(db, appLogger, cfg.DefaultPhoneRegion)
	importService.AttachBoards(boardManager)
	exportService := export.NewService(cfg.StorageLocalPath, appLogger)
	radarClient := radar.NewClient(cfg.RadarEngineURL)
	syncService := crmsync.NewService(crmsync.NewClient(cfg.CRMSyncURL), leadService, appLogger)

	// Background sync retry
	cronManager := jobs.NewCronManager(leadService, syncService, appLogger)
	if err := cronManager.SetupJobs(cfg.SyncRetrySchedule); err != nil {
		log.Fatalf("failed to schedule jobs: %v", err)
	}
	cronManager.Start()

	// Handlers
	leadHandler := handlers.NewLeadHandler(leadService, boardManager, syncService)
	stageHandler := handlers.NewStageHandler(stageService, orderingController)
	configHandler := handlers.NewConfigHandler(configService, orderingController)
	importHandler := handlers.NewImportHandler(importService, radarClient)
	exportHandler := handlers.NewExportHandler(exportService, leadService, configService)

	e := echo.New()
	e.HideBanner = true

	rateLimiter := custommiddleware.NewRateLimiter(
		float64(cfg.RateLimitRequestsPerMinute)/60.0,
		cfg.RateLimitBurst,
	)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			appLogger.Info("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(metrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(rateLimiter.Middleware())

	// Public endpoints
	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		dbStatus := "up"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "down"
		}
		redisStatus := "up"
		if _, err := redisClient.Get(ctx, "health_check"); err != nil && err.Error() != "redis: nil" {
			redisStatus = "down"
		}

		status := http.StatusOK
		if dbStatus == "down" || redisStatus == "down" {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, map[string]any{
			"status":   "ok",
			"database": dbStatus,
			"redis":    redisStatus,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Authenticated API
	v1 := e.Group("/api/v1")
	v1.Use(custommiddleware.JWTAuth(cfg.JWTSecret))

	v1.GET("/leads", leadHandler.ListLeads)
	v1.POST("/leads", leadHandler.CreateLead)
	v1.GET("/leads/export", exportHandler.ExportLeads)
	v1.POST("/leads/move", leadHandler.MoveLead)
	v1.PUT("/leads/selection", leadHandler.SetSelection)
	v1.POST("/leads/bulk/stage", leadHandler.BulkSetStage)
	v1.POST("/leads/bulk/agent", leadHandler.BulkAssignAgent)
	v1.POST("/leads/bulk/rating", leadHandler.BulkSetRating)
	v1.POST("/leads/bulk/category", leadHandler.BulkSetCategory)
	v1.POST("/leads/bulk/delete", leadHandler.BulkDelete)
	v1.GET("/leads/:id", leadHandler.GetLead)
	v1.PUT("/leads/:id", leadHandler.UpdateLead)
	v1.DELETE("/leads/:id", leadHandler.DeleteLead)
	v1.POST("/leads/:id/sync", leadHandler.SyncLead)

	v1.GET("/stages", stageHandler.ListStages)
	v1.POST("/stages", stageHandler.CreateStage)
	v1.POST("/stages/reorder", stageHandler.ReorderStages)
	v1.PUT("/stages/:id", stageHandler.UpdateStage)
	v1.DELETE("/stages/:id", stageHandler.DeleteStage)
	v1.POST("/stages/:id/reallocate", stageHandler.ReallocateAndDelete)

	v1.GET("/config/:table", configHandler.GetConfig)
	v1.PUT("/config/:table", configHandler.SaveConfig)
	v1.POST("/config/:table/fields", configHandler.AddCustomField)
	v1.DELETE("/config/:table/fields/:key", configHandler.RemoveCustomField)
	v1.POST("/config/:table/columns/reorder", configHandler.ReorderColumns)

	v1.POST("/radar/search", importHandler.RadarSearch)
	v1.POST("/import/file", importHandler.UploadFile)
	v1.POST("/import/preview", importHandler.PreviewImport)
	v1.POST("/import/confirm", importHandler.ConfirmImport)

	address := cfg.APIHost + ":" + cfg.APIPort
	appLogger.Info("starting server", "address", address)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	cronManager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	appLogger.Info("server stopped")
}
