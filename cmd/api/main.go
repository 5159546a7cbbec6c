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
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/covenantops-api/docs" // Swagger docs
	"github.com/sjperalta/covenantops-api/internal/config"
	"github.com/sjperalta/covenantops-api/internal/database"
	"github.com/sjperalta/covenantops-api/internal/extractor"
	"github.com/sjperalta/covenantops-api/internal/handlers"
	"github.com/sjperalta/covenantops-api/internal/jobs"
	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/middleware"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/internal/services"
	"github.com/sjperalta/covenantops-api/internal/storage"
	"github.com/sjperalta/covenantops-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title CovenantOps API
// @version 1.0
// @description Loan obligation tracking: extraction, due-status, evidence and compliance exports

// @host localhost:8000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Initialize Sentry when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.ResendAPIKey == "" {
		logger.Warn("Resend email disabled: RESEND_API_KEY not set, reminder digests will only be logged")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	// Initialize storage
	store, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage", "dir", cfg.StorageDir)

	ex, err := extractor.New(cfg.ExtractorProvider, nil)
	if err != nil {
		logger.Error("Failed to initialize extractor", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(services.Deps{
		Repos:     repository.NewRepositories(db),
		Storage:   store,
		Extractor: ex,
		Mailer:    services.NewMailer(cfg.ResendAPIKey, cfg.FromEmail),
		Metrics:   m,
		Config:    cfg,
	})

	// Schedule recurring jobs
	scheduleJobs(worker, svcs, cfg)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, worker, cfg)

	// Setup router
	router := setupRouter(h, m, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, m *metrics.Metrics, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = 8 << 20

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(m))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedExtensions([]string{".pdf", ".xlsx"})))

	// Redirect root to swagger
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var protect []gin.HandlerFunc
	if cfg.JWTSecret != "" {
		protect = append(protect, middleware.Auth(cfg.JWTSecret))
		logger.Info("Bearer authentication enabled")
	}
	h.Register(router.Group("/api"), protect...)

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	if !cfg.RemindersEnabled() {
		logger.Info("Reminder digests disabled", "interval", cfg.ReminderInterval, "recipients", len(cfg.ReminderRecipients))
		return
	}

	worker.ScheduleEvery("reminder-digests", cfg.ReminderInterval, func(ctx context.Context) error {
		logger.Info("[Job] Sending reminder digests...")
		return svcs.Reminder.SendAllDigests(ctx)
	})

	logger.Info("Scheduled recurring jobs", "reminder_interval", cfg.ReminderInterval)
}
