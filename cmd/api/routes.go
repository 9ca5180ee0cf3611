package main

import (
	"github.com/gin-gonic/gin"

	"voice-agent-platform/internal/httpapi"
	"voice-agent-platform/internal/rbac"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireAccount())
	{
		agents := v1.Group("/agents")
		agents.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent))
		{
			agents.POST("/deploy", h.Deploy)
			agents.POST("/:agent_id/cleanup", h.Cleanup)
		}

		v1.POST("/usage", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent), h.RecordUsage)

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleSuperAdmin))
		{
			admin.POST("/billing/run", h.RunBilling)
		}
	}
}
