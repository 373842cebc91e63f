package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult represents the result of a health check.
type HealthCheckResult struct {
	Status   HealthStatus   `json:"status"`
	Duration string         `json:"duration,omitempty"`
	Error    string         `json:"error,omitempty"`
	Stats    map[string]any `json:"stats,omitempty"`
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status HealthStatus                  `json:"status"`
	Checks map[string]*HealthCheckResult `json:"checks"`
}

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsReporter is a Pinger that also reports pool statistics.
type StatsReporter interface {
	Health() map[string]any
}

// HealthHandler reports on the directory and application databases.
type HealthHandler struct {
	checks map[string]Pinger
	logger zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. checks maps a name to its dependency.
func NewHealthHandler(checks map[string]Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterPublicRoutes registers the health route.
func (h *HealthHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/health", h.Overall)
}

// Overall pings every dependency.
// GET /health
func (h *HealthHandler) Overall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := &HealthResponse{
		Status: HealthStatusHealthy,
		Checks: make(map[string]*HealthCheckResult, len(h.checks)),
	}
	for name, p := range h.checks {
		start := time.Now()
		result := &HealthCheckResult{Status: HealthStatusHealthy}
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Str("check", name).Msg("health check failed")
			result.Status = HealthStatusUnhealthy
			result.Error = "unreachable"
			response.Status = HealthStatusUnhealthy
		}
		if r, ok := p.(StatsReporter); ok {
			result.Stats = r.Health()
		}
		result.Duration = time.Since(start).String()
		response.Checks[name] = result
	}

	if response.Status == HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
