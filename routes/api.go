package routes

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/ozanyurt/crm-comms-service/environments"
	"github.com/ozanyurt/crm-comms-service/handlers"
	"github.com/ozanyurt/crm-comms-service/internal/middlewares"
)

// RegisterRoutes registers all API routes with middleware
func RegisterRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	webhookHandler *handlers.WebhookHandler,
	contactHandler *handlers.ContactHandler,
	conversationHandler *handlers.ConversationHandler,
	cfg *environments.Config,
) {
	e.GET("/health", healthHandler.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Provider-facing ingest endpoint, authenticated by HMAC signature
	e.POST("/webhooks/openphone", webhookHandler.Receive,
		middlewares.WebhookSignature(cfg.OpenPhone.WebhookSecret))

	// CRM API, authenticated by API key
	v1 := e.Group("/api/v1", middlewares.APIKeyAuth(cfg.Auth.CRMAPIKey))

	contacts := v1.Group("/contacts")
	contacts.GET("", contactHandler.ListContacts)
	contacts.POST("", contactHandler.CreateContact)
	contacts.GET("/:id", contactHandler.GetContact)
	contacts.PUT("/:id", contactHandler.UpdateContact)
	contacts.GET("/:id/optout", contactHandler.GetOptOutStatus)
	contacts.POST("/:id/optout", contactHandler.ManualOptOut)

	conversations := v1.Group("/conversations")
	conversations.GET("", conversationHandler.ListConversations)
	conversations.GET("/:id/activities", conversationHandler.ListActivities)

	v1.GET("/audits", conversationHandler.ListAudits)
	v1.GET("/webhook-events", conversationHandler.ListWebhookEvents)
}
