package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ozanyurt/crm-comms-service/environments"
	"github.com/ozanyurt/crm-comms-service/handlers"
	"github.com/ozanyurt/crm-comms-service/internal/repository"
	"github.com/ozanyurt/crm-comms-service/internal/service"
	"github.com/ozanyurt/crm-comms-service/pkg/database"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
	"github.com/ozanyurt/crm-comms-service/pkg/notifier"
	"github.com/ozanyurt/crm-comms-service/pkg/redis"
	"github.com/ozanyurt/crm-comms-service/pkg/validator"
	"github.com/ozanyurt/crm-comms-service/routes"

	_ "github.com/ozanyurt/crm-comms-service/docs" // swagger docs
)

// @title CRM Communications Service API
// @version 1.0
// @description Inbound communication event pipeline for OpenPhone webhooks

// @contact.name API Support
// @contact.email ozan.yurt@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @schemes http https
func main() {
	logger.Init()

	// Load config
	cfg := environments.Load()

	// Hard-fail if required secrets are missing
	if cfg.Auth.CRMAPIKey == "" {
		logger.Fatalf("CRM_API_KEY is required but not set")
	}
	if cfg.OpenPhone.WebhookSecret == "" {
		logger.Warnf("OPENPHONE_WEBHOOK_SECRET not set, webhook signatures will not be verified")
	}

	logger.Infof("Starting CRM Communications Service...")

	// Init DB
	db, err := database.NewMySQLDB(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed data
	if os.Getenv("SEED_DATA") == "true" {
		if err := database.SeedTestData(db); err != nil {
			logger.Warnf("Failed to seed test data: %v", err)
		}
	}

	// Init redis
	var redisClient *redis.Client
	redisClient, err = redis.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warnf("Redis not available, opt-out caching disabled: %v", err)
		redisClient = nil
	}

	// Outbound SMS client for opt-out confirmations
	smsClient := notifier.NewClient(cfg.Notifier)
	logger.Infof("Notifier configured: %s", smsClient.GetURL())

	// Repositories
	contactRepo := repository.NewContactRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	complianceRepo := repository.NewComplianceRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	// Services
	resolver := service.NewResolver(contactRepo, conversationRepo)

	// A typed nil *redis.Client must not reach the cache interface, the
	// nil check inside the service would miss it.
	var optOutService *service.OptOutService
	if redisClient != nil {
		optOutService = service.NewOptOutService(complianceRepo, smsClient, redisClient)
	} else {
		optOutService = service.NewOptOutService(complianceRepo, smsClient, nil)
	}
	messageService := service.NewMessageService(activityRepo, resolver, optOutService)
	callService := service.NewCallService(activityRepo, resolver, cfg.OpenPhone.PhoneNumber)
	dispatcher := service.NewDispatcher(webhookEventRepo, messageService, callService)
	crmService := service.NewCRMService(contactRepo, conversationRepo, activityRepo, complianceRepo, webhookEventRepo)

	// Handlers
	healthHandler := handlers.NewHealthHandler(db, redisClient)
	webhookHandler := handlers.NewWebhookHandler(dispatcher)
	contactHandler := handlers.NewContactHandler(crmService, optOutService)
	conversationHandler := handlers.NewConversationHandler(crmService)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"x-crm-api-key",
		},
	}))

	// Setup routes
	routes.RegisterRoutes(e, healthHandler, webhookHandler, contactHandler, conversationHandler, cfg)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		logger.Infof("Swagger docs available at http://localhost%s/swagger/index.html", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	// Shutdown HTTP server (with timeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Infof("HTTP server stopped successfully")
	}

	// Close database connection
	logger.Infof("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Errorf("Error closing database: %v", err)
	}

	// Close Redis connection
	if redisClient != nil {
		logger.Infof("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			logger.Errorf("Error closing Redis: %v", err)
		}
	}

	logger.Infof("Graceful shutdown completed")
}
