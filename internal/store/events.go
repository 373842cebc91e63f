package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
)

// EventRepository stores the provisioning trail: one row per saga transition.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates an EventRepository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record appends a transition of run runID
func (r *EventRepository) Record(ctx context.Context, runID uuid.UUID, tenantID *int64, state model.ProvisioningState, details map[string]any) error {
	var detailsJSON []byte
	if len(details) > 0 {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal event details: %w", err)
		}
	}

	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO provisioning_events (run_id, tenant_id, state, details) VALUES ($1, $2, $3, $4)`,
		runID, tenantID, string(state), detailsJSON)
	if err != nil {
		return fmt.Errorf("insert provisioning event: %w", err)
	}
	return nil
}

// ListByRun returns the transitions of one run in order
func (r *EventRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]model.ProvisioningEvent, error) {
	query, args, err := psql.Select("id", "run_id", "tenant_id", "state", "details", "created_at").
		From("provisioning_events").
		Where("run_id = ?", runID).
		OrderBy("id").
		ToSql()
	return r.list(ctx, query, args, err)
}

// ListByTenant returns every transition recorded for a tenant in order
func (r *EventRepository) ListByTenant(ctx context.Context, tenantID int64) ([]model.ProvisioningEvent, error) {
	query, args, err := psql.Select("id", "run_id", "tenant_id", "state", "details", "created_at").
		From("provisioning_events").
		Where("tenant_id = ?", tenantID).
		OrderBy("id").
		ToSql()
	return r.list(ctx, query, args, err)
}

func (r *EventRepository) list(ctx context.Context, query string, args []interface{}, err error) ([]model.ProvisioningEvent, error) {
	if err != nil {
		return nil, fmt.Errorf("build event query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list provisioning events: %w", err)
	}
	defer rows.Close()

	events := []model.ProvisioningEvent{}
	for rows.Next() {
		var (
			e       model.ProvisioningEvent
			state   string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.TenantID, &state, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan provisioning event: %w", err)
		}
		e.State = model.ProvisioningState(state)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode event details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
