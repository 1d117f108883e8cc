package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meep1w/pocket/internal/domain"
	"github.com/meep1w/pocket/internal/dto"
	"github.com/meep1w/pocket/internal/service"
	"github.com/meep1w/pocket/pkg/response"
)

// TenantHandler handles the operator console tenant API
type TenantHandler struct {
	tenantService service.TenantService
}

// NewTenantHandler creates a new TenantHandler
func NewTenantHandler(tenantService service.TenantService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

func tenantIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid tenant ID"))
		return 0, false
	}
	return id, true
}

// Create handles tenant onboarding
// POST /api/v1/tenants
func (h *TenantHandler) Create(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.tenantService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrMissingOwner) || errors.Is(err, domain.ErrMissingBotToken) {
			c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// GetByID handles retrieving a tenant by ID
// GET /api/v1/tenants/:id
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, ok := tenantIDParam(c)
	if !ok {
		return
	}

	result, err := h.tenantService.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, response.Error(response.ErrCodeTenantNotFound, "Tenant not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// List handles listing tenants by run-state
// GET /api/v1/tenants?status=active
func (h *TenantHandler) List(c *gin.Context) {
	status := domain.TenantStatus(c.DefaultQuery("status", string(domain.TenantStatusActive)))

	result, err := h.tenantService.List(c.Request.Context(), status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, response.BadRequest("Unknown tenant status"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// Update handles tenant profile changes
// PATCH /api/v1/tenants/:id
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := tenantIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.tenantService.Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, response.Error(response.ErrCodeTenantNotFound, "Tenant not found"))
			return
		}
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// SetStatus handles run-state changes
// PUT /api/v1/tenants/:id/status
func (h *TenantHandler) SetStatus(c *gin.Context) {
	id, ok := tenantIDParam(c)
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	err := h.tenantService.SetStatus(c.Request.Context(), id, domain.TenantStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTenantNotFound):
			c.JSON(http.StatusNotFound, response.Error(response.ErrCodeTenantNotFound, "Tenant not found"))
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, response.BadRequest("Unknown tenant status"))
		default:
			c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"id": id, "status": req.Status}))
}

// GetConfig handles reading funnel thresholds
// GET /api/v1/tenants/:id/config
func (h *TenantHandler) GetConfig(c *gin.Context) {
	id, ok := tenantIDParam(c)
	if !ok {
		return
	}

	result, err := h.tenantService.GetConfig(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, response.Error(response.ErrCodeTenantNotFound, "Tenant not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// UpdateConfig handles patching funnel thresholds
// PATCH /api/v1/tenants/:id/config
func (h *TenantHandler) UpdateConfig(c *gin.Context) {
	id, ok := tenantIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.tenantService.UpdateConfig(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, response.Error(response.ErrCodeTenantNotFound, "Tenant not found"))
			return
		}
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// ResetUserFunnel handles the administrative funnel reset
// POST /api/v1/tenants/:id/reset-user
func (h *TenantHandler) ResetUserFunnel(c *gin.Context) {
	id, ok := tenantIDParam(c)
	if !ok {
		return
	}

	var req dto.ResetFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.tenantService.ResetUserFunnel(c.Request.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTenantNotFound):
			c.JSON(http.StatusNotFound, response.Error(response.ErrCodeTenantNotFound, "Tenant not found"))
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, response.Error(response.ErrCodeUserNotFound, "User not found"))
		default:
			c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}
