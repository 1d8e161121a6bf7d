package httpapi

import (
	"waasp/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
//
// The check endpoints are public: message gateways call them on every
// inbound message. Everything else sits behind authMW and RBAC.
func Register(r *gin.Engine, h Handlers, authMW gin.HandlerFunc) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/check", h.Check)
	v1.GET("/check/:sender_id", h.QuickCheck)

	admin := v1.Group("")
	admin.Use(authMW)

	// CONTACT routes: auditors may read, only admins mutate.
	contactsGroup := admin.Group("/contacts")
	{
		read := rbac.RequireAnyRole(rbac.RoleAuditor)
		write := rbac.RequireAnyRole(rbac.RoleAdmin)

		contactsGroup.GET("", read, h.ListContacts)
		contactsGroup.POST("", write, h.CreateContact)
		contactsGroup.GET("/:sender_id", read, h.GetContact)
		contactsGroup.PATCH("/:sender_id", write, h.UpdateContact)
		contactsGroup.DELETE("/:sender_id", write, h.DeleteContact)
	}

	// AUDIT routes
	auditGroup := admin.Group("/audit")
	auditGroup.Use(rbac.RequireAnyRole(rbac.RoleAuditor))
	{
		auditGroup.GET("", h.ListAudit)
		auditGroup.GET("/stats", h.AuditStats)
	}
}
