package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
)

const superAdminColumns = `id, name, email, password_hash, created_at, updated_at, deleted_at`

// SuperAdminRepository persists platform operators
type SuperAdminRepository struct {
	db   *DB
	logs *LogRepository
}

// NewSuperAdminRepository creates a SuperAdminRepository
func NewSuperAdminRepository(db *DB, logs *LogRepository) *SuperAdminRepository {
	return &SuperAdminRepository{db: db, logs: logs}
}

func scanSuperAdmin(row pgx.Row) (*model.SuperAdmin, error) {
	var a model.SuperAdmin
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("super admin not found")
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a super admin
func (r *SuperAdminRepository) Create(ctx context.Context, name, email, passwordHash string) (*model.SuperAdmin, error) {
	admin, err := scanSuperAdmin(r.db.Pool.QueryRow(ctx, `
		INSERT INTO super_admins (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+superAdminColumns, name, strings.ToLower(email), passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.CodeInvalidInput, "a super admin with this email already exists", err)
		}
		return nil, fmt.Errorf("insert super admin: %w", err)
	}
	return admin, nil
}

// GetByEmail returns an active super admin by email
func (r *SuperAdminRepository) GetByEmail(ctx context.Context, email string) (*model.SuperAdmin, error) {
	admin, err := scanSuperAdmin(r.db.Pool.QueryRow(ctx,
		`SELECT `+superAdminColumns+` FROM super_admins WHERE email = $1 AND deleted_at IS NULL`,
		strings.ToLower(email)))
	if err != nil {
		return nil, wrapRead(err, "get super admin by email")
	}
	return admin, nil
}

// GetByID returns an active super admin
func (r *SuperAdminRepository) GetByID(ctx context.Context, id int64) (*model.SuperAdmin, error) {
	admin, err := scanSuperAdmin(r.db.Pool.QueryRow(ctx,
		`SELECT `+superAdminColumns+` FROM super_admins WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, wrapRead(err, "get super admin")
	}
	return admin, nil
}

// UpdateProfile changes name and email and, when passwordHash is not empty,
// the password. The change is audited in the same transaction.
func (r *SuperAdminRepository) UpdateProfile(ctx context.Context, id int64, name, email, passwordHash string) (*model.SuperAdmin, error) {
	var updated *model.SuperAdmin
	err := r.db.ExecTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = scanSuperAdmin(tx.QueryRow(ctx, `
			UPDATE super_admins
			SET name = $2, email = $3,
			    password_hash = COALESCE(NULLIF($4, ''), password_hash),
			    updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING `+superAdminColumns, id, name, strings.ToLower(email), passwordHash))
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.New(apperr.CodeInvalidInput, "a super admin with this email already exists", err)
			}
			return wrapRead(err, "update super admin")
		}

		action := fmt.Sprintf("Updated admin profile: %s (%s)", updated.Name, updated.Email)
		if passwordHash != "" {
			action = fmt.Sprintf("Updated admin profile with password change: %s (%s)", updated.Name, updated.Email)
		}
		_ = r.logs.RecordTx(ctx, tx, id, action)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
