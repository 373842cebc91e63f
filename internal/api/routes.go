// Package api provides the HTTP API for the tenant provisioning service.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/api/handlers"
	"github.com/teresa-solution/tenant-provisioning-service/internal/api/middleware"
)

// Deps holds what the router serves.
type Deps struct {
	Tenants handlers.TenantAPI
	Admins  handlers.AdminAPI
	Tokens  middleware.TokenParser
	Auditor middleware.AccessAuditor
	Events  handlers.EventLister
	Sync    handlers.SchemaSyncer
	Health  map[string]handlers.Pinger
}

// NewRouter builds the gin engine with middleware and every route mounted.
func NewRouter(deps Deps, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger), middleware.Metrics())

	handlers.NewHealthHandler(deps.Health, logger).RegisterPublicRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tenants := handlers.NewTenantsHandler(deps.Tenants, logger)
	admins := handlers.NewAdminHandler(deps.Admins, logger)
	provisioning := handlers.NewProvisioningHandler(deps.Events, deps.Sync, logger)

	public := r.Group("/api")
	tenants.RegisterPublicRoutes(public)
	admins.RegisterPublicRoutes(public)

	protected := r.Group("/api",
		middleware.AuthMiddleware(deps.Tokens, deps.Auditor, logger),
		middleware.SuperAdminMiddleware(deps.Auditor, logger),
	)
	tenants.RegisterRoutes(protected)
	admins.RegisterRoutes(protected)
	provisioning.RegisterRoutes(protected)

	return r
}
