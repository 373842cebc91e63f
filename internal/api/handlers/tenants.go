package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/api/middleware"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/service"
)

// TenantAPI defines the tenant operations behind the HTTP surface.
type TenantAPI interface {
	CreateTenant(ctx context.Context, in service.CreateTenantInput) (*service.ProvisioningOutcome, error)
	ListTenants(ctx context.Context, adminID int64) ([]model.Tenant, error)
	GetTenant(ctx context.Context, id, adminID int64) (*model.Tenant, error)
	UpdateTenant(ctx context.Context, id int64, name string, status model.TenantStatus, adminID int64) (*model.Tenant, error)
	DeleteTenant(ctx context.Context, id, adminID int64) (*model.DeletedTenant, error)
	CheckSubdomain(ctx context.Context, subdomain string) (bool, error)
}

// TenantsHandler handles tenant HTTP endpoints.
type TenantsHandler struct {
	tenants TenantAPI
	logger  zerolog.Logger
}

// NewTenantsHandler creates a new TenantsHandler.
func NewTenantsHandler(tenants TenantAPI, logger zerolog.Logger) *TenantsHandler {
	return &TenantsHandler{
		tenants: tenants,
		logger:  logger.With().Str("component", "tenants_handler").Logger(),
	}
}

// RegisterPublicRoutes registers routes that don't require authentication.
func (h *TenantsHandler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/check-subdomain/:subdomain", h.CheckSubdomain)
}

// RegisterRoutes registers super admin tenant routes on the given router group.
func (h *TenantsHandler) RegisterRoutes(r *gin.RouterGroup) {
	tenants := r.Group("/tenants")
	{
		tenants.POST("", h.Create)
		tenants.GET("", h.List)
		tenants.GET("/:id", h.Get)
		tenants.PUT("/:id", h.Update)
		tenants.DELETE("/:id", h.Delete)
	}
}

// CreateTenantResponse is returned after a tenant has been provisioned.
type CreateTenantResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	TenantID int64  `json:"tenantId"`
}

// UpdateTenantRequest is the body of PUT /api/tenants/:id.
type UpdateTenantRequest struct {
	Name   string             `json:"name"`
	Status model.TenantStatus `json:"status"`
}

// TenantResponse wraps the result of an update or delete.
type TenantResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Tenant  any    `json:"tenant"`
}

// actingAdmin returns the authenticated super admin, falling back to the id in the body.
func actingAdmin(c *gin.Context, fallback int64) int64 {
	if claims := middleware.GetClaims(c); claims != nil && claims.IsSuperAdmin {
		return claims.AdminID
	}
	return fallback
}

func parseTenantID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid tenant ID"})
		return 0, false
	}
	return id, true
}

// Create provisions a new tenant.
// POST /api/tenants
func (h *TenantsHandler) Create(c *gin.Context) {
	var req service.CreateTenantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields", Details: err.Error()})
		return
	}
	req.AdminID = actingAdmin(c, req.AdminID)

	out, err := h.tenants.CreateTenant(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, CreateTenantResponse{
		Success:  true,
		Message:  fmt.Sprintf("Tenant %s (%s) created successfully", out.Tenant.Name, out.Tenant.Subdomain),
		TenantID: out.Tenant.ID,
	})
}

// List returns every active tenant, newest first.
// GET /api/tenants
func (h *TenantsHandler) List(c *gin.Context) {
	tenants, err := h.tenants.ListTenants(c.Request.Context(), actingAdmin(c, 0))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tenants)
}

// Get returns a tenant by ID.
// GET /api/tenants/:id
func (h *TenantsHandler) Get(c *gin.Context) {
	id, ok := parseTenantID(c)
	if !ok {
		return
	}
	tenant, err := h.tenants.GetTenant(c.Request.Context(), id, actingAdmin(c, 0))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// Update changes a tenant's name and status.
// PUT /api/tenants/:id
func (h *TenantsHandler) Update(c *gin.Context) {
	id, ok := parseTenantID(c)
	if !ok {
		return
	}
	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	tenant, err := h.tenants.UpdateTenant(c.Request.Context(), id, req.Name, req.Status, actingAdmin(c, 0))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, TenantResponse{Success: true, Message: "Tenant updated successfully", Tenant: tenant})
}

// Delete soft-deletes a tenant.
// DELETE /api/tenants/:id
func (h *TenantsHandler) Delete(c *gin.Context) {
	id, ok := parseTenantID(c)
	if !ok {
		return
	}
	deleted, err := h.tenants.DeleteTenant(c.Request.Context(), id, actingAdmin(c, 0))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, TenantResponse{Success: true, Message: "Tenant deleted successfully", Tenant: deleted})
}

// CheckSubdomain reports whether a subdomain is free.
// GET /api/tenants/check-subdomain/:subdomain
func (h *TenantsHandler) CheckSubdomain(c *gin.Context) {
	available, err := h.tenants.CheckSubdomain(c.Request.Context(), c.Param("subdomain"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}
