package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/store"
)

const (
	minPasswordLength  = 6
	maxSubdomainLength = 63
)

var subdomainRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// AuditRecorder appends audit entries outside a directory transaction
type AuditRecorder interface {
	Record(ctx context.Context, adminID int64, action string) error
}

// ValidateSubdomain checks the subdomain format
func ValidateSubdomain(subdomain string) error {
	if subdomain == "" {
		return apperr.Invalid("subdomain is required")
	}
	if len(subdomain) > maxSubdomainLength {
		return apperr.Invalid(fmt.Sprintf("subdomain must be at most %d characters", maxSubdomainLength))
	}
	if !subdomainRe.MatchString(subdomain) {
		return apperr.Invalid("Subdomain must contain only lowercase letters, numbers, and hyphens")
	}
	return nil
}

// ValidateCreateTenant checks a provisioning request before anything durable happens
func ValidateCreateTenant(in CreateTenantInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("tenant name is required")
	}
	if err := ValidateSubdomain(in.Subdomain); err != nil {
		return err
	}
	if in.AdminID <= 0 {
		return apperr.Invalid("acting admin id is required")
	}
	seed := in.AdminUser
	if strings.TrimSpace(seed.FirstName) == "" || strings.TrimSpace(seed.LastName) == "" {
		return apperr.Invalid("admin user first and last name are required")
	}
	if !strings.Contains(seed.Email, "@") {
		return apperr.Invalid("admin user email is invalid")
	}
	if len(seed.Password) < minPasswordLength {
		return apperr.Invalid(fmt.Sprintf("admin user password must be at least %d characters", minPasswordLength))
	}
	return nil
}

// ValidateUpdateTenant checks an update request. Both fields are required;
// termination goes through delete.
func ValidateUpdateTenant(name string, status model.TenantStatus) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Invalid("Tenant name is required")
	}
	if !status.Valid() {
		return apperr.Invalid(fmt.Sprintf("status must be one of active, pending, deactivated; got %q", status))
	}
	if status == model.TenantStatusTerminated {
		return apperr.Invalid("use delete to terminate a tenant")
	}
	return nil
}

// TenantService is the tenant API over the directory and the provisioning saga
type TenantService struct {
	directory    Directory
	provisioning *ProvisioningService
	audit        AuditRecorder
	logger       zerolog.Logger
}

// NewTenantService creates a TenantService
func NewTenantService(directory Directory, provisioning *ProvisioningService, audit AuditRecorder, logger zerolog.Logger) *TenantService {
	return &TenantService{
		directory:    directory,
		provisioning: provisioning,
		audit:        audit,
		logger:       logger.With().Str("component", "tenant_service").Logger(),
	}
}

// CreateTenant provisions a tenant end to end
func (s *TenantService) CreateTenant(ctx context.Context, in CreateTenantInput) (*ProvisioningOutcome, error) {
	return s.provisioning.Provision(ctx, in)
}

// ListTenants returns active tenants newest first and audits the read
func (s *TenantService) ListTenants(ctx context.Context, adminID int64) ([]model.Tenant, error) {
	tenants, err := s.directory.List(ctx, store.ListOptions{})
	if err != nil {
		return nil, err
	}
	s.recordRead(ctx, adminID, "Retrieved list of all tenants")
	return tenants, nil
}

// GetTenant returns one active tenant and audits the read
func (s *TenantService) GetTenant(ctx context.Context, id, adminID int64) (*model.Tenant, error) {
	tenant, err := s.directory.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordRead(ctx, adminID, fmt.Sprintf("Retrieved details for tenant %s (ID: %d)", tenant.Name, tenant.ID))
	return tenant, nil
}

// UpdateTenant changes name and status
func (s *TenantService) UpdateTenant(ctx context.Context, id int64, name string, status model.TenantStatus, adminID int64) (*model.Tenant, error) {
	if err := ValidateUpdateTenant(name, status); err != nil {
		return nil, err
	}
	return s.directory.Update(ctx, id, name, status, adminID)
}

// DeleteTenant soft-deletes a tenant. The schema is kept.
func (s *TenantService) DeleteTenant(ctx context.Context, id, adminID int64) (*model.DeletedTenant, error) {
	return s.directory.SoftDelete(ctx, id, adminID)
}

// CheckSubdomain reports whether subdomain is free for a new tenant
func (s *TenantService) CheckSubdomain(ctx context.Context, subdomain string) (bool, error) {
	if err := ValidateSubdomain(subdomain); err != nil {
		return false, err
	}
	_, err := s.directory.GetBySubdomain(ctx, subdomain)
	if errors.Is(err, apperr.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *TenantService) recordRead(ctx context.Context, adminID int64, action string) {
	if s.audit == nil || adminID <= 0 {
		return
	}
	if err := s.audit.Record(ctx, adminID, action); err != nil {
		s.logger.Warn().Err(err).Int64("admin_id", adminID).Msg("read audit entry not written")
	}
}
