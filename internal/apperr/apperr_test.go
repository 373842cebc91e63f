package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIsMatchesOnCode(t *testing.T) {
	err := New(CodeNotFound, "tenant 42 not found", nil)
	wrapped := fmt.Errorf("get tenant: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrDuplicateTenant))
}

func TestErrorUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WithDetail(CodeProvisioningFailed, "schema provisioning failed", "create schema acme", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "provisioning_failed: schema provisioning failed: connection refused", err.Error())
	assert.Equal(t, "create schema acme", err.Detail)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidInput, CodeOf(fmt.Errorf("validate: %w", Invalid("name is required"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeInternal, CodeOf(nil))
}

func TestAs(t *testing.T) {
	e, ok := As(fmt.Errorf("outer: %w", ErrSeedFailed))
	require.True(t, ok)
	assert.Equal(t, CodeSeedFailed, e.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeDuplicateTenant, http.StatusConflict},
		{CodeNotFound, http.StatusNotFound},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeProvisioningFailed, http.StatusInternalServerError},
		{CodeSeedFailed, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}
