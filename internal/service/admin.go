package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

// AdminStore persists super admins
type AdminStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (*model.SuperAdmin, error)
	GetByEmail(ctx context.Context, email string) (*model.SuperAdmin, error)
	GetByID(ctx context.Context, id int64) (*model.SuperAdmin, error)
	UpdateProfile(ctx context.Context, id int64, name, email, passwordHash string) (*model.SuperAdmin, error)
}

// LogReader pages through the audit log
type LogReader interface {
	List(ctx context.Context, page, limit int) ([]model.LogEntry, error)
	Count(ctx context.Context) (int64, error)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hasher
	Check(hash, password string) error
}

// TokenIssuer signs bearer tokens
type TokenIssuer interface {
	Issue(adminID int64, email string, isSuperAdmin bool) (string, error)
}

// AdminView is the public shape of a super admin
type AdminView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token string    `json:"token"`
	User  AdminView `json:"user"`
}

// ProfileUpdate changes a super admin's own profile
type ProfileUpdate struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Pagination describes a page of audit entries
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalLogs  int64 `json:"totalLogs"`
	TotalPages int64 `json:"totalPages"`
}

// LogPage is one page of the audit log
type LogPage struct {
	Logs       []model.LogEntry `json:"logs"`
	Pagination Pagination       `json:"pagination"`
}

var errInvalidCredentials = apperr.New(apperr.CodeUnauthorized, "Invalid credentials", nil)

// AdminService handles super admin login, profile and audit log reads
type AdminService struct {
	admins AdminStore
	logs   LogReader
	audit  AuditRecorder
	hasher PasswordHasher
	tokens TokenIssuer
	logger zerolog.Logger
}

// NewAdminService creates an AdminService
func NewAdminService(admins AdminStore, logs LogReader, audit AuditRecorder, hasher PasswordHasher, tokens TokenIssuer, logger zerolog.Logger) *AdminService {
	return &AdminService{
		admins: admins,
		logs:   logs,
		audit:  audit,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With().Str("component", "admin_service").Logger(),
	}
}

// Login checks credentials and issues a token
func (s *AdminService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Invalid("Email and password are required")
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if admin.ID == model.SystemAdminID {
		return nil, errInvalidCredentials
	}
	if err := s.hasher.Check(admin.PasswordHash, password); err != nil {
		s.logger.Info().Int64("admin_id", admin.ID).Msg("rejected login with wrong password")
		return nil, errInvalidCredentials
	}

	token, err := s.tokens.Issue(admin.ID, admin.Email, true)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "could not issue token", err)
	}

	s.record(ctx, admin.ID, fmt.Sprintf("Admin login: %s (%s)", admin.Name, admin.Email))
	return &LoginResult{
		Token: token,
		User:  AdminView{ID: admin.ID, Name: admin.Name, Email: admin.Email, IsSuperAdmin: true},
	}, nil
}

// Profile returns the admin's own profile
func (s *AdminService) Profile(ctx context.Context, adminID int64) (*model.SuperAdmin, error) {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, "Viewed admin profile")
	return admin, nil
}

// UpdateProfile changes name and email, and the password when NewPassword is
// set. A password change requires the current password.
func (s *AdminService) UpdateProfile(ctx context.Context, adminID int64, in ProfileUpdate) (*model.SuperAdmin, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, apperr.Invalid("Name and email are required")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, apperr.Invalid("email is invalid")
	}

	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}

	var newHash string
	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return nil, apperr.Invalid("Current password is required to set a new password")
		}
		if len(in.NewPassword) < minPasswordLength {
			return nil, apperr.Invalid(fmt.Sprintf("new password must be at least %d characters", minPasswordLength))
		}
		if err := s.hasher.Check(admin.PasswordHash, in.CurrentPassword); err != nil {
			return nil, apperr.New(apperr.CodeUnauthorized, "Current password is incorrect", nil)
		}
		newHash, err = s.hasher.Hash(in.NewPassword)
		if err != nil {
			return nil, apperr.New(apperr.CodeInternal, "could not hash password", err)
		}
	}

	return s.admins.UpdateProfile(ctx, adminID, strings.TrimSpace(in.Name), strings.TrimSpace(in.Email), newHash)
}

// Logs returns one page of the audit log, newest first. page defaults to 1,
// limit to 20 and is capped at 100.
func (s *AdminService) Logs(ctx context.Context, adminID int64, page, limit int) (*LogPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	s.record(ctx, adminID, fmt.Sprintf("Viewed system logs (page %d, limit %d)", page, limit))

	entries, err := s.logs.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.logs.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &LogPage{
		Logs: entries,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			TotalLogs:  total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

// Bootstrap creates a super admin, typically the first one
func (s *AdminService) Bootstrap(ctx context.Context, name, email, password string) (*model.SuperAdmin, error) {
	if strings.TrimSpace(name) == "" || !strings.Contains(email, "@") {
		return nil, apperr.Invalid("name and a valid email are required")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "could not hash password", err)
	}
	admin, err := s.admins.Create(ctx, strings.TrimSpace(name), strings.TrimSpace(email), hash)
	if err != nil {
		return nil, err
	}
	s.record(ctx, admin.ID, fmt.Sprintf("Super admin created: %s (%s)", admin.Name, admin.Email))
	return admin, nil
}

// RecordAuthFailure logs a rejected request against the system admin
func (s *AdminService) RecordAuthFailure(ctx context.Context, reason, method, path string) {
	s.record(ctx, model.SystemAdminID, fmt.Sprintf("Auth failure: %s - %s %s", reason, method, path))
}

// RecordAccess logs an authenticated super admin request
func (s *AdminService) RecordAccess(ctx context.Context, adminID int64, method, path string) {
	s.record(ctx, adminID, fmt.Sprintf("Authenticated access to %s %s", method, path))
}

func (s *AdminService) record(ctx context.Context, adminID int64, action string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, adminID, action); err != nil {
		s.logger.Warn().Err(err).Int64("admin_id", adminID).Msg("audit entry not written")
	}
}
