package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-agent-platform/internal/auth"
)

// RequireAccount enforces tenant scoping: account_id must exist in context.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		aid, err := auth.AccountID(c.Request.Context())
		if err != nil || aid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// Rules:
// - super_admin bypasses all checks
// - unknown roles are always denied
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsSuperAdmin(role) {
			c.Next()
			return
		}

		if !IsKnownRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
