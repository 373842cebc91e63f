package model

import (
	"time"
)

// TenantStatus is the lifecycle status of a tenant
type TenantStatus string

const (
	TenantStatusActive      TenantStatus = "active"
	TenantStatusPending     TenantStatus = "pending"
	TenantStatusDeactivated TenantStatus = "deactivated"
	TenantStatusTerminated  TenantStatus = "terminated"
)

// Valid reports whether s is one of the known statuses
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusPending, TenantStatusDeactivated, TenantStatusTerminated:
		return true
	}
	return false
}

// Tenant represents the tenants table
type Tenant struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	Subdomain        string       `json:"subdomain"`
	SchemaName       string       `json:"schema_name"`
	Status           TenantStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	DeletedAt        *time.Time   `json:"deleted_at,omitempty"`
	CreatedByAdminID int64        `json:"created_by_admin_id"`
}

// DeletedTenant is returned by a soft delete
type DeletedTenant struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	ID      int64  `json:"id"`
}

// AdminSeed holds the first administrative user created inside a tenant schema.
// Password is plaintext and only lives for the duration of the provisioning request.
type AdminSeed struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// SchemaStatus is the result of introspecting a tenant schema
type SchemaStatus struct {
	SchemaExists     bool     `json:"schema_exists"`
	UsersTableExists bool     `json:"users_exists"`
	MissingTables    []string `json:"missing_tables,omitempty"`
}

// Complete reports whether the schema and every expected table exist
func (s SchemaStatus) Complete() bool {
	return s.SchemaExists && s.UsersTableExists && len(s.MissingTables) == 0
}

// ProvisionResult describes what a provision call did
type ProvisionResult struct {
	Schema             string `json:"schema"`
	Created            bool   `json:"created"`
	AlreadyProvisioned bool   `json:"already_provisioned"`
	Statements         int    `json:"statements"`
}
