package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"voice-agent-platform/internal/auth"
)

func serveAs(accountID, role string, chain ...gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", accountID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })

	r := gin.New()
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveAs("a", RoleSuperAdmin, RequireAccount(), RequireAnyRole(RoleOwner)); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AllowsListedRole(t *testing.T) {
	if code := serveAs("a", RoleAgent, RequireAccount(), RequireAnyRole(RoleOwner, RoleAgent)); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesUnlistedRole(t *testing.T) {
	if code := serveAs("a", RoleAgent, RequireAnyRole(RoleSuperAdmin)); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_DeniesUnknownRoleEvenIfListed(t *testing.T) {
	if code := serveAs("a", "network_operator", RequireAnyRole("network_operator")); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAccount_Required(t *testing.T) {
	if code := serveAs("", RoleOwner, RequireAccount(), RequireAnyRole(RoleOwner)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
