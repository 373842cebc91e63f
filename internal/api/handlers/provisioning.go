package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/service"
)

// EventLister reads the provisioning trail.
type EventLister interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]model.ProvisioningEvent, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]model.ProvisioningEvent, error)
}

// SchemaSyncer runs a schema reconciliation pass on request.
type SchemaSyncer interface {
	Trigger(ctx context.Context) ([]service.SyncResult, error)
}

// ProvisioningHandler exposes the provisioning trail and schema sync.
type ProvisioningHandler struct {
	events EventLister
	sync   SchemaSyncer
	logger zerolog.Logger
}

// NewProvisioningHandler creates a new ProvisioningHandler.
func NewProvisioningHandler(events EventLister, sync SchemaSyncer, logger zerolog.Logger) *ProvisioningHandler {
	return &ProvisioningHandler{
		events: events,
		sync:   sync,
		logger: logger.With().Str("component", "provisioning_handler").Logger(),
	}
}

// RegisterRoutes registers super admin provisioning routes on the given router group.
func (h *ProvisioningHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:id/provisioning-events", h.TenantEvents)
	r.GET("/provisioning-runs/:runId/events", h.RunEvents)
	r.POST("/admin/schema-sync", h.SyncSchemas)
}

// EventsResponse wraps a provisioning trail.
type EventsResponse struct {
	Events []model.ProvisioningEvent `json:"events"`
}

// TenantEvents returns every provisioning transition recorded for a tenant,
// including tenants whose provisioning was rolled back.
// GET /api/tenants/:id/provisioning-events
func (h *ProvisioningHandler) TenantEvents(c *gin.Context) {
	id, ok := parseTenantID(c)
	if !ok {
		return
	}
	events, err := h.events.ListByTenant(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, EventsResponse{Events: events})
}

// RunEvents returns the transitions of one provisioning run.
// GET /api/provisioning-runs/:runId/events
func (h *ProvisioningHandler) RunEvents(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid run ID"})
		return
	}
	events, err := h.events.ListByRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, EventsResponse{Events: events})
}

// SyncSchemasResponse reports one reconciliation pass.
type SyncSchemasResponse struct {
	Results  []service.SyncResult `json:"results"`
	Repaired int                  `json:"repaired"`
	Failed   int                  `json:"failed"`
}

// SyncSchemas runs a schema reconciliation pass and waits for it.
// POST /api/admin/schema-sync
func (h *ProvisioningHandler) SyncSchemas(c *gin.Context) {
	results, err := h.sync.Trigger(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := SyncSchemasResponse{Results: results}
	for _, r := range results {
		switch {
		case r.Error != "":
			resp.Failed++
		case r.Repaired:
			resp.Repaired++
		}
	}
	if resp.Results == nil {
		resp.Results = []service.SyncResult{}
	}
	c.JSON(http.StatusOK, resp)
}
