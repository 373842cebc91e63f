package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/monitoring"
	"github.com/teresa-solution/tenant-provisioning-service/internal/store"
)

// SyncResult is the outcome of reconciling one tenant schema
type SyncResult struct {
	TenantID int64              `json:"tenant_id"`
	Schema   string             `json:"schema"`
	Before   model.SchemaStatus `json:"before"`
	Repaired bool               `json:"repaired"`
	Skipped  bool               `json:"skipped,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// SyncOptions tunes schema sync
type SyncOptions struct {
	// GracePeriod skips tenants created less than this long ago. Their
	// provisioning run may still be in flight and owns the schema.
	GracePeriod time.Duration
}

// SchemaSyncService re-provisions tenant schemas that are missing or
// incomplete in the application database.
type SchemaSyncService struct {
	directory   Directory
	provisioner SchemaProvisioner
	opts        SyncOptions
	now         func() time.Time
	logger      zerolog.Logger
	requests    chan chan []SyncResult
	running     atomic.Bool
}

// NewSchemaSyncService creates a SchemaSyncService
func NewSchemaSyncService(directory Directory, prov SchemaProvisioner, opts SyncOptions, logger zerolog.Logger) *SchemaSyncService {
	return &SchemaSyncService{
		directory:   directory,
		provisioner: prov,
		opts:        opts,
		now:         time.Now,
		logger:      logger.With().Str("component", "schema_sync").Logger(),
		requests:    make(chan chan []SyncResult),
	}
}

// SyncAll verifies every active tenant's schema and provisions the ones that
// are not complete. Per-tenant failures are reported in the results.
func (s *SchemaSyncService) SyncAll(ctx context.Context) ([]SyncResult, error) {
	tenants, err := s.directory.List(ctx, store.ListOptions{Status: model.TenantStatusActive})
	if err != nil {
		return nil, err
	}

	results := make([]SyncResult, 0, len(tenants))
	for _, t := range tenants {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, s.syncOne(ctx, t))
	}

	s.logger.Info().Int("tenants", len(tenants)).Msg("schema sync finished")
	return results, nil
}

func (s *SchemaSyncService) syncOne(ctx context.Context, t model.Tenant) SyncResult {
	res := SyncResult{TenantID: t.ID, Schema: t.SchemaName}
	log := s.logger.With().Int64("tenant_id", t.ID).Str("schema", t.SchemaName).Logger()

	if s.opts.GracePeriod > 0 && s.now().Sub(t.CreatedAt) < s.opts.GracePeriod {
		monitoring.SchemaSyncRuns.WithLabelValues("skipped").Inc()
		log.Debug().Time("created_at", t.CreatedAt).Msg("tenant too new to sync, skipping")
		res.Skipped = true
		return res
	}

	status, err := s.provisioner.Verify(ctx, t.SchemaName)
	if err != nil {
		monitoring.SchemaSyncRuns.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("schema verification failed")
		res.Error = err.Error()
		return res
	}
	res.Before = status
	if status.Complete() {
		monitoring.SchemaSyncRuns.WithLabelValues("in_sync").Inc()
		return res
	}

	log.Warn().
		Bool("schema_exists", status.SchemaExists).
		Strs("missing_tables", status.MissingTables).
		Msg("tenant schema out of sync, provisioning")
	if _, err := s.provisioner.Provision(ctx, t.SchemaName); err != nil {
		monitoring.SchemaSyncRuns.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("schema repair failed")
		res.Error = err.Error()
		return res
	}
	monitoring.SchemaSyncRuns.WithLabelValues("repaired").Inc()
	res.Repaired = true
	return res
}

// Run reconciles on every tick until ctx is done. Trigger requests an
// immediate pass from another goroutine.
func (s *SchemaSyncService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.running.Store(true)
	defer s.running.Store(false)

	s.logger.Info().Dur("interval", interval).Msg("schema sync worker started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("schema sync worker stopped")
			return
		case <-ticker.C:
			if _, err := s.SyncAll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("schema sync pass failed")
			}
		case reply := <-s.requests:
			results, err := s.SyncAll(ctx)
			if err != nil {
				s.logger.Error().Err(err).Msg("requested schema sync failed")
			}
			reply <- results
		}
	}
}

// Trigger asks the running worker for an immediate pass and waits for its
// results. Without a worker the pass runs on the caller's goroutine.
func (s *SchemaSyncService) Trigger(ctx context.Context) ([]SyncResult, error) {
	if !s.running.Load() {
		return s.SyncAll(ctx)
	}
	reply := make(chan []SyncResult, 1)
	select {
	case s.requests <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case results := <-reply:
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
