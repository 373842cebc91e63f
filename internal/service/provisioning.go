package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/monitoring"
	"github.com/teresa-solution/tenant-provisioning-service/internal/provisioner"
	"github.com/teresa-solution/tenant-provisioning-service/internal/store"
)

// Directory is the tenant system of record
type Directory interface {
	Create(ctx context.Context, name, subdomain string, adminID int64) (*model.Tenant, error)
	GetByID(ctx context.Context, id int64) (*model.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error)
	List(ctx context.Context, opts store.ListOptions) ([]model.Tenant, error)
	Update(ctx context.Context, id int64, name string, status model.TenantStatus, adminID int64) (*model.Tenant, error)
	SoftDelete(ctx context.Context, id int64, adminID int64) (*model.DeletedTenant, error)
}

// SchemaProvisioner materializes tenant schemas
type SchemaProvisioner interface {
	Provision(ctx context.Context, schema string) (*model.ProvisionResult, error)
	Verify(ctx context.Context, schema string) (model.SchemaStatus, error)
	ExecuteScoped(ctx context.Context, schema, sql string, args ...any) ([]map[string]any, error)
	InScopedTx(ctx context.Context, schema string, fn func(tx pgx.Tx) error) error
	Drop(ctx context.Context, schema string) error
}

// Hasher hashes passwords one way
type Hasher interface {
	Hash(password string) (string, error)
}

// EventRecorder stores saga transitions
type EventRecorder interface {
	Record(ctx context.Context, runID uuid.UUID, tenantID *int64, state model.ProvisioningState, details map[string]any) error
}

// CreateTenantInput is a provisioning request
type CreateTenantInput struct {
	Name      string          `json:"name"`
	Subdomain string          `json:"subdomain"`
	AdminID   int64           `json:"adminId"`
	AdminUser model.AdminSeed `json:"adminUser"`
}

// ProvisioningOutcome reports where a run ended
type ProvisioningOutcome struct {
	RunID  uuid.UUID
	Tenant *model.Tenant
	State  model.ProvisioningState
	Schema *model.ProvisionResult
}

// ProvisioningOptions tunes compensation
type ProvisioningOptions struct {
	// DropSchemaOnFailure drops a schema created by a failed run.
	// Schemas that existed before the run are never dropped.
	DropSchemaOnFailure bool
}

// ProvisioningService runs the tenant provisioning saga: directory record,
// schema, admin seed. A failure after the directory record exists is
// compensated by soft-deleting that record.
type ProvisioningService struct {
	directory   Directory
	provisioner SchemaProvisioner
	hasher      Hasher
	events      EventRecorder
	opts        ProvisioningOptions
	logger      zerolog.Logger
}

// NewProvisioningService creates a ProvisioningService. events may be nil.
func NewProvisioningService(directory Directory, prov SchemaProvisioner, hasher Hasher, events EventRecorder, opts ProvisioningOptions, logger zerolog.Logger) *ProvisioningService {
	return &ProvisioningService{
		directory:   directory,
		provisioner: prov,
		hasher:      hasher,
		events:      events,
		opts:        opts,
		logger:      logger.With().Str("component", "provisioning").Logger(),
	}
}

// run carries the state of one saga execution
type run struct {
	outcome ProvisioningOutcome
	adminID int64
	logger  zerolog.Logger
}

func (r *run) tenantID() *int64 {
	if r.outcome.Tenant == nil {
		return nil
	}
	id := r.outcome.Tenant.ID
	return &id
}

// Provision executes the saga. On failure the returned outcome tells whether
// the run rolled back or needs manual intervention.
func (s *ProvisioningService) Provision(ctx context.Context, in CreateTenantInput) (*ProvisioningOutcome, error) {
	start := time.Now()
	defer func() {
		monitoring.ProvisioningDuration.Observe(time.Since(start).Seconds())
	}()

	r := &run{
		outcome: ProvisioningOutcome{RunID: uuid.New()},
		adminID: in.AdminID,
	}
	r.logger = s.logger.With().
		Str("run_id", r.outcome.RunID.String()).
		Str("subdomain", in.Subdomain).
		Logger()

	s.transition(ctx, r, model.StateRequested, map[string]any{"name": in.Name, "subdomain": in.Subdomain})

	if err := ValidateCreateTenant(in); err != nil {
		monitoring.TenantsProvisioned.WithLabelValues("rejected").Inc()
		r.logger.Warn().Err(err).Msg("provisioning request rejected")
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(in.AdminUser.Password)
	if err != nil {
		monitoring.TenantsProvisioned.WithLabelValues("rejected").Inc()
		return nil, apperr.New(apperr.CodeInternal, "could not hash admin password", err)
	}

	// Requested -> DirectoryRecordCreated
	tenant, err := s.directory.Create(ctx, in.Name, in.Subdomain, in.AdminID)
	if err != nil {
		s.transition(ctx, r, model.StateRolledBack, map[string]any{"error": string(apperr.CodeOf(err)), "compensation": "none"})
		monitoring.TenantsProvisioned.WithLabelValues("rejected").Inc()
		return nil, err
	}
	r.outcome.Tenant = tenant
	r.logger = r.logger.With().Int64("tenant_id", tenant.ID).Str("schema", tenant.SchemaName).Logger()
	s.transition(ctx, r, model.StateDirectoryRecordCreated, nil)

	// DirectoryRecordCreated -> SchemaProvisioned
	res, err := s.provisioner.Provision(ctx, tenant.SchemaName)
	if err != nil {
		return s.fail(ctx, r, asProvisioningFailed(tenant.SchemaName, err))
	}
	r.outcome.Schema = res
	if !res.Created {
		r.logger.Warn().Bool("already_provisioned", res.AlreadyProvisioned).Msg("reusing existing schema")
	}

	status, err := s.provisioner.Verify(ctx, tenant.SchemaName)
	if err != nil {
		return s.fail(ctx, r, asProvisioningFailed(tenant.SchemaName, err))
	}
	if !status.SchemaExists || !status.UsersTableExists {
		return s.fail(ctx, r, apperr.WithDetail(apperr.CodeProvisioningFailed, apperr.ErrProvisioningFailed.Message,
			fmt.Sprintf("schema %s verification failed: schema_exists=%t users_exists=%t",
				tenant.SchemaName, status.SchemaExists, status.UsersTableExists), nil))
	}
	if !res.Created {
		if err := s.ensureNoPriorUsers(ctx, tenant.SchemaName); err != nil {
			return s.fail(ctx, r, err)
		}
	}
	s.transition(ctx, r, model.StateSchemaProvisioned, map[string]any{
		"created":             res.Created,
		"already_provisioned": res.AlreadyProvisioned,
	})

	// SchemaProvisioned -> AdminSeeded
	var userID int64
	err = s.provisioner.InScopedTx(ctx, tenant.SchemaName, func(tx pgx.Tx) error {
		var err error
		userID, err = seedAdmin(ctx, tx, tenant.Subdomain, in.AdminUser, passwordHash)
		return err
	})
	if err != nil {
		return s.fail(ctx, r, apperr.WithDetail(apperr.CodeSeedFailed, apperr.ErrSeedFailed.Message,
			seedFailureDetail(tenant.SchemaName, err), err))
	}
	s.transition(ctx, r, model.StateAdminSeeded, map[string]any{"user_id": userID})

	// AdminSeeded -> Completed
	r.outcome.State = model.StateCompleted
	s.transition(ctx, r, model.StateCompleted, nil)
	monitoring.TenantsProvisioned.WithLabelValues("completed").Inc()
	r.logger.Info().Dur("elapsed", time.Since(start)).Msg("tenant provisioned")
	return &r.outcome, nil
}

const (
	seedUserSQL = `INSERT INTO users (first_name, last_name, email, password, tenant_subdomain, teams_id)
		VALUES ($1, $2, $3, $4, $5, NULL)
		RETURNING id`
	seedRoleSQL = `INSERT INTO roles (title, user_id) VALUES ('admin', $1)`
)

// seedAdmin inserts the first user and its admin role. Both rows share tx.
func seedAdmin(ctx context.Context, tx pgx.Tx, subdomain string, seed model.AdminSeed, passwordHash string) (int64, error) {
	var userID int64
	if err := tx.QueryRow(ctx, seedUserSQL,
		seed.FirstName, seed.LastName, seed.Email, passwordHash, subdomain).Scan(&userID); err != nil {
		return 0, fmt.Errorf("insert admin user: %w", err)
	}
	if _, err := tx.Exec(ctx, seedRoleSQL, userID); err != nil {
		return 0, fmt.Errorf("insert admin role: %w", err)
	}
	return userID, nil
}

const countUsersSQL = `SELECT count(*) AS users FROM users`

// ensureNoPriorUsers fails when a reused schema still holds users, which
// happens when a soft-deleted tenant's subdomain is taken again.
func (s *ProvisioningService) ensureNoPriorUsers(ctx context.Context, schema string) error {
	rows, err := s.provisioner.ExecuteScoped(ctx, schema, countUsersSQL)
	if err != nil {
		return asProvisioningFailed(schema, err)
	}
	var users int64
	if len(rows) == 1 {
		users, _ = rows[0]["users"].(int64)
	}
	if users > 0 {
		return apperr.WithDetail(apperr.CodeProvisioningFailed, apperr.ErrProvisioningFailed.Message,
			fmt.Sprintf("schema %s holds data from a previous tenant", schema), nil)
	}
	return nil
}

func seedFailureDetail(schema string, err error) string {
	if errors.Is(err, provisioner.ErrUnreachable) {
		return "application database unreachable"
	}
	return fmt.Sprintf("could not create admin user in schema %s", schema)
}

// asProvisioningFailed keeps provisioner errors that already carry the
// ProvisioningFailed code and wraps everything else.
func asProvisioningFailed(schema string, err error) error {
	if apperr.CodeOf(err) == apperr.CodeProvisioningFailed {
		return err
	}
	return apperr.WithDetail(apperr.CodeProvisioningFailed, apperr.ErrProvisioningFailed.Message,
		fmt.Sprintf("schema %s could not be provisioned", schema), err)
}

// fail compensates the steps completed so far and returns cause, annotated
// when compensation could not finish.
func (s *ProvisioningService) fail(ctx context.Context, r *run, cause error) (*ProvisioningOutcome, error) {
	r.logger.Error().Err(cause).Str("code", string(apperr.CodeOf(cause))).Msg("provisioning step failed, compensating")

	// Compensation runs to completion even if the caller went away.
	cctx := context.WithoutCancel(ctx)
	tenant := r.outcome.Tenant
	var problems []string

	if _, err := s.directory.SoftDelete(cctx, tenant.ID, r.adminID); err != nil {
		monitoring.Compensations.WithLabelValues("directory_record", "failed").Inc()
		r.logger.Error().Err(err).Msg("compensation failed: tenant record still active")
		problems = append(problems, "tenant record could not be removed")
	} else {
		monitoring.Compensations.WithLabelValues("directory_record", "succeeded").Inc()
	}

	schemaCreated := r.outcome.Schema != nil && r.outcome.Schema.Created
	switch {
	case schemaCreated && s.opts.DropSchemaOnFailure:
		if err := s.provisioner.Drop(cctx, tenant.SchemaName); err != nil {
			monitoring.Compensations.WithLabelValues("schema", "failed").Inc()
			r.logger.Error().Err(err).Msg("compensation failed: schema not dropped")
			problems = append(problems, "schema could not be dropped")
		} else {
			monitoring.Compensations.WithLabelValues("schema", "succeeded").Inc()
		}
	case r.outcome.Schema != nil:
		r.logger.Warn().Bool("created_by_run", schemaCreated).Msg("schema left in place after failed provisioning")
	}

	code := apperr.CodeOf(cause)
	if len(problems) == 0 {
		r.outcome.State = model.StateRolledBack
		s.transition(cctx, r, model.StateRolledBack, map[string]any{"error": string(code)})
		monitoring.TenantsProvisioned.WithLabelValues("rolled_back").Inc()
		return &r.outcome, cause
	}

	r.outcome.State = model.StateFailedNeedsManualIntervention
	s.transition(cctx, r, model.StateFailedNeedsManualIntervention, map[string]any{
		"error":    string(code),
		"problems": problems,
	})
	monitoring.TenantsProvisioned.WithLabelValues("failed_manual").Inc()
	monitoring.Alert("tenant provisioning compensation failed", map[string]string{
		"run_id":    r.outcome.RunID.String(),
		"tenant_id": strconv.FormatInt(tenant.ID, 10),
		"schema":    tenant.SchemaName,
		"error":     string(code),
	})

	msg := "tenant provisioning failed"
	detail := "manual intervention required"
	if e, ok := apperr.As(cause); ok {
		msg = e.Message
		if e.Detail != "" {
			detail = e.Detail + "; " + detail
		}
	}
	return &r.outcome, apperr.WithDetail(code, msg, detail, cause)
}

// transition logs a saga state change and appends it to the event trail.
// Trail failures are logged only.
func (s *ProvisioningService) transition(ctx context.Context, r *run, state model.ProvisioningState, details map[string]any) {
	r.logger.Info().Str("state", string(state)).Msg("provisioning transition")
	if s.events == nil {
		return
	}
	if err := s.events.Record(context.WithoutCancel(ctx), r.outcome.RunID, r.tenantID(), state, details); err != nil {
		r.logger.Warn().Err(err).Str("state", string(state)).Msg("failed to record provisioning event")
	}
}
