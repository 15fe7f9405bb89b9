package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ozanyurt/crm-comms-service/internal/domain"
	"github.com/ozanyurt/crm-comms-service/internal/service"
	"github.com/ozanyurt/crm-comms-service/pkg/response"
	"github.com/ozanyurt/crm-comms-service/pkg/validator"
)

type ContactHandler struct {
	crm    *service.CRMService
	optOut *service.OptOutService
}

func NewContactHandler(crm *service.CRMService, optOut *service.OptOutService) *ContactHandler {
	return &ContactHandler{crm: crm, optOut: optOut}
}

type CreateContactRequest struct {
	Phone     string `json:"phone" validate:"required,phone"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
}

type UpdateContactRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
}

type ManualOptOutRequest struct {
	Reason    string `json:"reason" validate:"required,max=255"`
	CreatedBy string `json:"createdBy" validate:"required,max=100"`
}

// ListContacts godoc
// @Summary List contacts
// @Tags contacts
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 100)"
// @Success 200 {object} response.PaginatedResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/contacts [get]
func (h *ContactHandler) ListContacts(c echo.Context) error {
	page, pageSize, err := parsePaginationParams(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	contacts, totalCount, err := h.crm.ListContacts(c.Request().Context(), page, pageSize)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Paginated(c, contacts, page, pageSize, totalCount)
}

// GetContact godoc
// @Summary Get one contact
// @Tags contacts
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param id path int true "Contact ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/contacts/{id} [get]
func (h *ContactHandler) GetContact(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	contact, err := h.crm.GetContact(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, contact)
}

// CreateContact godoc
// @Summary Create a contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param contact body CreateContactRequest true "Contact to create"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} validator.ValidationErrorResponse
// @Router /api/v1/contacts [post]
func (h *ContactHandler) CreateContact(c echo.Context) error {
	var req CreateContactRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	contact, err := h.crm.CreateContact(c.Request().Context(), req.Phone, req.FirstName, req.LastName, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return response.BadRequestWithMessage(c, "a contact with this phone number already exists")
		}
		return response.InternalServerError(c, err)
	}

	return response.Created(c, "Contact created successfully", contact)
}

// UpdateContact godoc
// @Summary Update a contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param id path int true "Contact ID"
// @Param contact body UpdateContactRequest true "Fields to update"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/contacts/{id} [put]
func (h *ContactHandler) UpdateContact(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req UpdateContactRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	contact, err := h.crm.UpdateContact(c.Request().Context(), id, req.FirstName, req.LastName, req.Email)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Contact updated successfully", contact)
}

// GetOptOutStatus godoc
// @Summary Get a contact's opt-out status and flag history
// @Tags compliance
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param id path int true "Contact ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/contacts/{id}/optout [get]
func (h *ContactHandler) GetOptOutStatus(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	ctx := c.Request().Context()

	if _, err := h.crm.GetContact(ctx, id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, err)
	}

	optedOut, err := h.optOut.IsContactOptedOut(ctx, id)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	history, err := h.optOut.FlagHistory(ctx, id)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"optedOut": optedOut,
		"history":  history,
	})
}

// ManualOptOut godoc
// @Summary Flag a contact as opted out on behalf of an operator
// @Tags compliance
// @Accept json
// @Produce json
// @Param x-crm-api-key header string true "CRM API key"
// @Param id path int true "Contact ID"
// @Param request body ManualOptOutRequest true "Reason and operator"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/contacts/{id}/optout [post]
func (h *ContactHandler) ManualOptOut(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req ManualOptOutRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	ctx := c.Request().Context()

	contact, err := h.crm.GetContact(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return response.NotFound(c, err.Error())
		}
		return response.InternalServerError(c, err)
	}

	result, err := h.optOut.ApplyManualOptOut(ctx, contact, req.Reason, req.CreatedBy)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Opt-out recorded", result)
}

func parseIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

func parsePaginationParams(c echo.Context) (int, int, error) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)

	page := defaultPage
	if pageStr := c.QueryParam("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
		page = p
	}

	pageSize := defaultPageSize
	if pageSizeStr := c.QueryParam("pageSize"); pageSizeStr != "" {
		ps, err := strconv.Atoi(pageSizeStr)
		if err != nil || ps <= 0 || ps > maxPageSize {
			return 0, 0, fmt.Errorf("pageSize must be between 1 and %d", maxPageSize)
		}
		pageSize = ps
	}

	return page, pageSize, nil
}
