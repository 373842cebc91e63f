package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
)

const tenantColumns = `id, name, subdomain, schema_name, status, created_at, updated_at, deleted_at, created_by_admin_id`

// ListOptions filters List
type ListOptions struct {
	Status model.TenantStatus
}

// TenantRepository is the tenant directory. Every mutation and its audit
// entry commit in one transaction.
type TenantRepository struct {
	db     *DB
	logs   *LogRepository
	cache  *TenantCache
	logger zerolog.Logger
}

// NewTenantRepository creates a TenantRepository. cache may be nil.
func NewTenantRepository(db *DB, logs *LogRepository, cache *TenantCache, logger zerolog.Logger) *TenantRepository {
	return &TenantRepository{
		db:     db,
		logs:   logs,
		cache:  cache,
		logger: logger.With().Str("component", "tenant_directory").Logger(),
	}
}

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	var (
		t         model.Tenant
		status    string
		createdBy *int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.SchemaName, &status,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt, &createdBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	t.Status = model.TenantStatus(status)
	if createdBy != nil {
		t.CreatedByAdminID = *createdBy
	}
	return &t, nil
}

func duplicateTenant(subdomain string, err error) error {
	return apperr.New(apperr.CodeDuplicateTenant,
		fmt.Sprintf("tenant with subdomain %q already exists", subdomain), err)
}

// Create inserts an active tenant with a derived schema name and audits it.
func (r *TenantRepository) Create(ctx context.Context, name, subdomain string, adminID int64) (*model.Tenant, error) {
	schemaName := model.DeriveSchemaName(subdomain)

	var tenant *model.Tenant
	err := r.db.ExecTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM tenants
				WHERE (subdomain = $1 OR schema_name = $2) AND deleted_at IS NULL
			)`, subdomain, schemaName).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check existing tenant: %w", err)
		}
		if exists {
			return duplicateTenant(subdomain, nil)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO tenants (name, subdomain, schema_name, status, created_by_admin_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+tenantColumns,
			name, subdomain, schemaName, model.TenantStatusActive, adminID)
		tenant, err = scanTenant(row)
		if err != nil {
			if isUniqueViolation(err) {
				return duplicateTenant(subdomain, err)
			}
			return fmt.Errorf("insert tenant: %w", err)
		}

		_ = r.logs.RecordTx(ctx, tx, adminID, fmt.Sprintf("Created new tenant: %s (%s)", name, subdomain))
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Int64("tenant_id", tenant.ID).
		Str("subdomain", tenant.Subdomain).
		Str("schema", tenant.SchemaName).
		Msg("tenant record created")
	return tenant, nil
}

// GetByID returns an active tenant
func (r *TenantRepository) GetByID(ctx context.Context, id int64) (*model.Tenant, error) {
	if t, ok := r.cache.Get(ctx, id); ok {
		return t, nil
	}

	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1 AND deleted_at IS NULL`, id)
	tenant, err := scanTenant(row)
	if err != nil {
		return nil, wrapRead(err, "get tenant")
	}

	r.cache.Set(ctx, tenant)
	return tenant, nil
}

// GetBySubdomain returns the active tenant owning subdomain
func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1 AND deleted_at IS NULL`, subdomain)
	tenant, err := scanTenant(row)
	if err != nil {
		return nil, wrapRead(err, "get tenant by subdomain")
	}
	return tenant, nil
}

// List returns active tenants, newest first
func (r *TenantRepository) List(ctx context.Context, opts ListOptions) ([]model.Tenant, error) {
	builder := psql.
		Select(tenantColumns).
		From("tenants").
		Where("deleted_at IS NULL").
		OrderBy("created_at DESC", "id DESC")
	if opts.Status != "" {
		builder = builder.Where("status = ?", string(opts.Status))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tenant query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []model.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, nil
}

// Update changes name and status of an active tenant and audits the old and new values.
func (r *TenantRepository) Update(ctx context.Context, id int64, name string, status model.TenantStatus, adminID int64) (*model.Tenant, error) {
	var updated *model.Tenant
	err := r.db.ExecTx(ctx, func(tx pgx.Tx) error {
		old, err := scanTenant(tx.QueryRow(ctx,
			`SELECT `+tenantColumns+` FROM tenants WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id))
		if err != nil {
			return wrapRead(err, "lock tenant")
		}

		updated, err = scanTenant(tx.QueryRow(ctx, `
			UPDATE tenants SET name = $2, status = $3, updated_at = now()
			WHERE id = $1
			RETURNING `+tenantColumns, id, name, string(status)))
		if err != nil {
			return fmt.Errorf("update tenant: %w", err)
		}

		action := fmt.Sprintf(`Updated tenant %d - Name: "%s" → "%s", Status: "%s" → "%s"`,
			id, old.Name, name, old.Status, status)
		_ = r.logs.RecordTx(ctx, tx, adminID, action)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.cache.Invalidate(ctx, id)
	return updated, nil
}

// SoftDelete marks an active tenant terminated and deleted. Deleting an
// already deleted tenant reports NotFound.
func (r *TenantRepository) SoftDelete(ctx context.Context, id int64, adminID int64) (*model.DeletedTenant, error) {
	var deleted *model.Tenant
	err := r.db.ExecTx(ctx, func(tx pgx.Tx) error {
		var err error
		deleted, err = scanTenant(tx.QueryRow(ctx, `
			UPDATE tenants
			SET deleted_at = now(), updated_at = now(), status = $2
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING `+tenantColumns, id, string(model.TenantStatusTerminated)))
		if err != nil {
			return wrapRead(err, "delete tenant")
		}

		action := fmt.Sprintf("Deleted tenant: %s (ID: %d, subdomain: %s)", deleted.Name, id, deleted.Subdomain)
		_ = r.logs.RecordTx(ctx, tx, adminID, action)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.cache.Invalidate(ctx, id)
	r.logger.Info().Int64("tenant_id", id).Str("subdomain", deleted.Subdomain).Msg("tenant soft-deleted")
	return &model.DeletedTenant{Success: true, Name: deleted.Name, ID: deleted.ID}, nil
}

// wrapRead passes NotFound through and annotates anything else
func wrapRead(err error, op string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
