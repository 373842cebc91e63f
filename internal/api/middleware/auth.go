package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/auth"
)

const claimsKey = "claims"

// TokenParser validates bearer tokens
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AccessAuditor writes authentication outcomes to the audit log
type AccessAuditor interface {
	RecordAuthFailure(ctx context.Context, reason, method, path string)
	RecordAccess(ctx context.Context, adminID int64, method, path string)
}

// AuthMiddleware requires a valid bearer token. Rejections are audited
// against the system admin; super admin access is audited against the caller.
func AuthMiddleware(tokens TokenParser, auditor AccessAuditor, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		method, path := c.Request.Method, c.Request.URL.Path

		reject := func(reason, message string) {
			log.Debug().Str("reason", reason).Str("path", path).Msg("rejected request")
			auditor.RecordAuthFailure(ctx, reason, method, path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			reject("No token provided", "No token provided")
			return
		}
		parts := strings.Split(header, " ")
		if len(parts) != 2 {
			reject("Token malformatted", "Token error")
			return
		}
		if !strings.EqualFold(parts[0], "Bearer") {
			reject("Token scheme invalid", "Token malformatted")
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			reject("Invalid token", "Invalid token")
			return
		}

		c.Set(claimsKey, claims)
		if claims.IsSuperAdmin {
			auditor.RecordAccess(ctx, claims.AdminID, method, path)
		}
		c.Next()
	}
}

// SuperAdminMiddleware requires the authenticated caller to be a super admin.
func SuperAdminMiddleware(auditor AccessAuditor, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "super_admin_middleware").Logger()

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !claims.IsSuperAdmin {
			log.Warn().Str("path", c.Request.URL.Path).Msg("non super admin attempted to access super admin endpoint")
			auditor.RecordAuthFailure(c.Request.Context(), "Super admin access denied", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: Super admin privileges required"})
			return
		}
		c.Next()
	}
}

// GetClaims returns the claims set by AuthMiddleware, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}
