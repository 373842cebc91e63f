package model

import (
	"time"

	"github.com/google/uuid"
)

// SystemAdminID is the reserved super admin that owns system log entries,
// such as rejected authentication attempts.
const SystemAdminID int64 = 1

// SuperAdmin represents the super_admins table
type SuperAdmin struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// LogEntry represents the logs table joined with the acting admin
type LogEntry struct {
	ID          int64     `json:"id"`
	AdminID     int64     `json:"admin_id"`
	Action      string    `json:"action"`
	PerformedAt time.Time `json:"performed_at"`
	AdminName   string    `json:"admin_name,omitempty"`
	AdminEmail  string    `json:"admin_email,omitempty"`
}

// ProvisioningState is a state of the tenant provisioning saga
type ProvisioningState string

const (
	StateRequested                     ProvisioningState = "Requested"
	StateDirectoryRecordCreated        ProvisioningState = "DirectoryRecordCreated"
	StateSchemaProvisioned             ProvisioningState = "SchemaProvisioned"
	StateAdminSeeded                   ProvisioningState = "AdminSeeded"
	StateCompleted                     ProvisioningState = "Completed"
	StateRolledBack                    ProvisioningState = "RolledBack"
	StateFailedNeedsManualIntervention ProvisioningState = "FailedNeedsManualIntervention"
)

// Terminal reports whether no further transition is possible
func (s ProvisioningState) Terminal() bool {
	return s == StateCompleted || s == StateRolledBack || s == StateFailedNeedsManualIntervention
}

// ProvisioningEvent represents the provisioning_events table
type ProvisioningEvent struct {
	ID        int64             `json:"id"`
	RunID     uuid.UUID         `json:"run_id"`
	TenantID  *int64            `json:"tenant_id,omitempty"`
	State     ProvisioningState `json:"state"`
	Details   map[string]any    `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
