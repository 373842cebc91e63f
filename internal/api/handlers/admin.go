package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/api/middleware"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/service"
)

// AdminAPI defines the super admin operations behind the HTTP surface.
type AdminAPI interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Profile(ctx context.Context, adminID int64) (*model.SuperAdmin, error)
	UpdateProfile(ctx context.Context, adminID int64, in service.ProfileUpdate) (*model.SuperAdmin, error)
	Logs(ctx context.Context, adminID int64, page, limit int) (*service.LogPage, error)
}

// AdminHandler handles super admin HTTP endpoints.
type AdminHandler struct {
	admins AdminAPI
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admins AdminAPI, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admins: admins,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// RegisterPublicRoutes registers the login route.
func (h *AdminHandler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/admin/login", h.Login)
}

// RegisterRoutes registers super admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	{
		admin.GET("/profile", h.GetProfile)
		admin.PUT("/profile", h.UpdateProfile)
		admin.GET("/logs", h.Logs)
	}
}

// LoginRequest is the body of POST /api/admin/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token.
// POST /api/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Email and password are required"})
		return
	}
	res, err := h.admins.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetProfile returns the caller's profile.
// GET /api/admin/profile
func (h *AdminHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	admin, err := h.admins.Profile(c.Request.Context(), claims.AdminID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, admin)
}

// UpdateProfile changes the caller's profile.
// PUT /api/admin/profile
func (h *AdminHandler) UpdateProfile(c *gin.Context) {
	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Name and email are required"})
		return
	}
	claims := middleware.GetClaims(c)
	admin, err := h.admins.UpdateProfile(c.Request.Context(), claims.AdminID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, admin)
}

// Logs returns one page of the audit log.
// GET /api/admin/logs?page=&limit=
func (h *AdminHandler) Logs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	claims := middleware.GetClaims(c)
	res, err := h.admins.Logs(c.Request.Context(), claims.AdminID, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
