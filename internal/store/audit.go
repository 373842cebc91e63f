package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
	"github.com/teresa-solution/tenant-provisioning-service/internal/monitoring"
)

const insertLogSQL = `INSERT INTO logs (super_admins_id, action) VALUES ($1, $2)`

// LogRepository appends to and reads the audit log.
// A failed write is reported and counted but never undoes the action it describes.
type LogRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewLogRepository creates a LogRepository
func NewLogRepository(db *DB, logger zerolog.Logger) *LogRepository {
	return &LogRepository{
		db:     db,
		logger: logger.With().Str("component", "audit_log").Logger(),
	}
}

// Record appends an entry in its own statement
func (r *LogRepository) Record(ctx context.Context, adminID int64, action string) error {
	if _, err := r.db.Pool.Exec(ctx, insertLogSQL, adminID, action); err != nil {
		return r.failed(adminID, action, err)
	}
	return nil
}

// RecordTx appends an entry inside tx under a savepoint, so a failed write
// leaves the surrounding transaction usable.
func (r *LogRepository) RecordTx(ctx context.Context, tx pgx.Tx, adminID int64, action string) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return r.failed(adminID, action, err)
	}
	if _, err := sp.Exec(ctx, insertLogSQL, adminID, action); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			r.logger.Error().Err(rbErr).Msg("rollback to audit savepoint failed")
		}
		return r.failed(adminID, action, err)
	}
	if err := sp.Commit(ctx); err != nil {
		return r.failed(adminID, action, err)
	}
	return nil
}

func (r *LogRepository) failed(adminID int64, action string, err error) error {
	monitoring.AuditWriteFailures.Inc()
	r.logger.Error().
		Err(err).
		Int64("admin_id", adminID).
		Str("action", action).
		Msg("failed to write audit log entry")
	return apperr.New(apperr.CodeAuditWriteFailed, apperr.ErrAuditWriteFailed.Message, err)
}

// List returns one page of entries, newest first, with the acting admin's name and email
func (r *LogRepository) List(ctx context.Context, page, limit int) ([]model.LogEntry, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	query, args, err := psql.
		Select("l.id", "l.super_admins_id", "l.action", "l.performed_at",
			"COALESCE(a.name, '')", "COALESCE(a.email, '')").
		From("logs l").
		LeftJoin("super_admins a ON a.id = l.super_admins_id").
		OrderBy("l.performed_at DESC", "l.id DESC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build log query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	entries := []model.LogEntry{}
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.PerformedAt, &e.AdminName, &e.AdminEmail); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return entries, nil
}

// Count returns the total number of entries
func (r *LogRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}
