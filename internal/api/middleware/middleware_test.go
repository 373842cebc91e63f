package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-provisioning-service/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []string
}

func (a *recordingAuditor) RecordAuthFailure(ctx context.Context, reason, method, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, fmt.Sprintf("1:Auth failure: %s - %s %s", reason, method, path))
}

func (a *recordingAuditor) RecordAccess(ctx context.Context, adminID int64, method, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, fmt.Sprintf("%d:Authenticated access to %s %s", adminID, method, path))
}

func newAuthRouter(tokens *auth.TokenManager, auditor *recordingAuditor) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(tokens, auditor, zerolog.Nop()), SuperAdminMiddleware(auditor, zerolog.Nop()))
	r.GET("/api/tenants", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": GetClaims(c).AdminID})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	superToken, err := tokens.Issue(7, "root@example.com", true)
	require.NoError(t, err)
	plainToken, err := tokens.Issue(8, "user@example.com", false)
	require.NoError(t, err)
	foreign, err := auth.NewTokenManager("other-secret", time.Hour).Issue(7, "root@example.com", true)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		audit  []string
	}{
		{"super admin", "Bearer " + superToken, http.StatusOK, []string{"7:Authenticated access to GET /api/tenants"}},
		{"lowercase scheme", "bearer " + superToken, http.StatusOK, []string{"7:Authenticated access to GET /api/tenants"}},
		{"missing header", "", http.StatusUnauthorized, []string{"1:Auth failure: No token provided - GET /api/tenants"}},
		{"one part", "Bearer", http.StatusUnauthorized, []string{"1:Auth failure: Token malformatted - GET /api/tenants"}},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, []string{"1:Auth failure: Token scheme invalid - GET /api/tenants"}},
		{"foreign signature", "Bearer " + foreign, http.StatusUnauthorized, []string{"1:Auth failure: Invalid token - GET /api/tenants"}},
		{"not super admin", "Bearer " + plainToken, http.StatusForbidden, []string{"1:Auth failure: Super admin access denied - GET /api/tenants"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := &recordingAuditor{}
			r := newAuthRouter(tokens, auditor)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/tenants", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.audit, auditor.entries)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.Nop()), Metrics())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestGetClaimsWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/open", func(c *gin.Context) {
		assert.Nil(t, GetClaims(c))
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
