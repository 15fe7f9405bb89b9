package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/ozanyurt/crm-comms-service/internal/service"
	"github.com/ozanyurt/crm-comms-service/pkg/response"
)

type ConversationHandler struct {
	crm *service.CRMService
}

func NewConversationHandler(crm *service.CRMService) *ConversationHandler {
	return &ConversationHandler{crm: crm}
}

// ListConversations godoc
// @Summary List conversations, most recently active first
// @Tags conversations
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} response.PaginatedResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/conversations [get]
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	convs, totalCount, err := h.crm.ListConversations(c.Request().Context(), page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, convs, page, pageSize, totalCount)
}

// ListActivities godoc
// @Summary List the activities in a conversation
// @Tags conversations
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param id path int true "Conversation ID"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} response.PaginatedResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/conversations/{id}/activities [get]
func (h *ConversationHandler) ListActivities(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	activities, totalCount, err := h.crm.ListActivities(c.Request().Context(), id, page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, activities, page, pageSize, totalCount)
}

// ListAudits godoc
// @Summary List the opt-out audit trail
// @Tags compliance
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} response.PaginatedResponse
// @Router /api/v1/audits [get]
func (h *ConversationHandler) ListAudits(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	audits, totalCount, err := h.crm.ListAudits(c.Request().Context(), page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, audits, page, pageSize, totalCount)
}

// ListWebhookEvents godoc
// @Summary List raw webhook deliveries (audit log)
// @Tags webhooks
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} response.PaginatedResponse
// @Router /api/v1/webhook-events [get]
func (h *ConversationHandler) ListWebhookEvents(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	events, totalCount, err := h.crm.ListWebhookEvents(c.Request().Context(), page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, events, page, pageSize, totalCount)
}
