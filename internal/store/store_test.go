package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/teresa-solution/tenant-provisioning-service/internal/apperr"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func TestScanTenant_NoRowsIsNotFound(t *testing.T) {
	_, err := scanTenant(errRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	boom := errors.New("connection reset")
	_, err = scanTenant(errRow{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
}

func TestWrapRead(t *testing.T) {
	assert.Same(t, apperr.ErrNotFound, wrapRead(apperr.ErrNotFound, "get tenant"))

	err := wrapRead(errors.New("timeout"), "get tenant")
	assert.EqualError(t, err, "get tenant: timeout")
}

func TestDuplicateTenant(t *testing.T) {
	err := duplicateTenant("acme", nil)
	assert.ErrorIs(t, err, apperr.ErrDuplicateTenant)
	assert.Equal(t, apperr.CodeDuplicateTenant, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), `"acme"`)
}
