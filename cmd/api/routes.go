package main

import (
	"database/sql"
	"time"

	"voicegate/internal/config"
	"voicegate/internal/gateway"
	"voicegate/internal/httpapi"
	"voicegate/internal/rbac"
	"voicegate/internal/reconcile"
	"voicegate/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	cfg       config.Config
	db        *sql.DB
	authMW    gin.HandlerFunc
	gateway   *gateway.Handler
	reconcile *reconcile.Handler
	api       httpapi.Handlers
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Carrier webhooks. Signature validation is disabled only when no auth
	// token is configured (local/dev).
	carrierSig := httpapi.VerifyCarrierSignature(d.cfg.Carrier.AuthToken)
	r.POST("/webhooks/carrier/voice", carrierSig, d.gateway.HandleInboundCall)
	r.POST("/webhooks/carrier/status", carrierSig, d.reconcile.HandleStatus)

	// Vendor completion webhook.
	r.POST("/webhooks/vendor/completion", httpapi.VerifyVendorSecret(d.cfg.Vendor.WebhookSecret), d.reconcile.HandleCompletion)

	// Token issuance is public; everything else under /v1 requires a token.
	r.POST("/v1/auth/login", d.api.Login)

	v1 := r.Group("/v1")
	v1.Use(d.authMW)
	{
		admin := httpapi.RequireOrgAndAnyRole(rbac.RoleOwner, rbac.RoleAdmin)
		viewer := httpapi.RequireOrgAndAnyRole(rbac.RoleOwner, rbac.RoleAdmin, rbac.RoleViewer)

		regs := v1.Group("/registrations")
		{
			regs.POST("", append(admin, d.api.ProvisionNumber)...)
			regs.GET("", append(viewer, d.api.ListRegistrations)...)
			regs.GET("/:id", append(viewer, d.api.GetRegistration)...)
			regs.PUT("/:id/agent", append(admin, d.api.BindAgent)...)
			regs.PUT("/:id/active", append(admin, d.api.SetRegistrationActive)...)
			regs.GET("/:id/assistant", append(viewer, d.api.GetAssistant)...)
			regs.PATCH("/:id/assistant", append(admin, d.api.UpdateAssistant)...)
		}

		calls := v1.Group("/calls")
		{
			calls.GET("", append(viewer, d.api.ListCalls)...)
			calls.GET("/:session_id", append(viewer, d.api.GetCall)...)
		}
	}
}
