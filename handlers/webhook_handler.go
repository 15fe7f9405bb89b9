package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
	"github.com/ozanyurt/crm-comms-service/pkg/response"
)

type webhookProcessor interface {
	ProcessWebhook(ctx context.Context, body []byte) domain.WebhookResult
}

// WebhookHandler is the HTTP boundary for provider webhooks. The dispatcher
// owns all processing semantics; this layer only reads the body and maps
// the result to a transport status.
type WebhookHandler struct {
	dispatcher webhookProcessor
}

func NewWebhookHandler(dispatcher webhookProcessor) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// Receive godoc
// @Summary Receive a provider webhook
// @Description Ingests one OpenPhone webhook delivery (messages, calls, enrichments)
// @Tags webhooks
// @Accept json
// @Produce json
// @Param x-openphone-signature header string false "HMAC-SHA256 signature (sha256=<hex>)"
// @Param event body object true "Provider event envelope"
// @Success 200 {object} domain.WebhookResult
// @Failure 400 {object} response.ErrorResponse
// @Router /webhooks/openphone [post]
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return response.BadRequestWithMessage(c, "failed to read request body")
	}
	if len(body) == 0 {
		return response.BadRequestWithMessage(c, "empty request body")
	}

	result := h.dispatcher.ProcessWebhook(c.Request().Context(), body)

	// Always 200, even for error results: a non-2xx makes the provider
	// retry, and uncontrolled retries only add duplicate pressure. The
	// delivery log keeps the failure for diagnostics.
	return c.JSON(http.StatusOK, result)
}
