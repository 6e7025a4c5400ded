package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/api/handlers"
	"github.com/gocomet/ride-pooling/internal/api/middleware"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, auth *middleware.Authenticator, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// API v1 routes
	v1 := r.Group("/v1", middleware.RequireActor(auth))
	{
		// WebSocket connection
		v1.GET("/ws", h.HandleWebSocket)

		// Rider endpoints
		riders := v1.Group("/riders")
		{
			riders.POST("", h.CreateRider)
			riders.POST("/delete", h.DeleteRiders)
			riders.PUT("/:id", h.UpdateRider)
			riders.DELETE("/:id", h.DeleteRider)
		}

		// Ride endpoints
		rides := v1.Group("/rides")
		{
			rides.GET("/:id", h.GetRide)
			rides.POST("/:id/reset", h.ResetRide)
			rides.POST("/:id/applications", h.Apply)
			rides.POST("/:id/saves", h.Save)
		}

		// Membership endpoints
		memberships := v1.Group("/memberships")
		{
			memberships.GET("/:id", h.GetMembership)
			memberships.PUT("/:id/application", h.UpdateApplication)
			memberships.DELETE("/:id/application", h.CancelApplication)
			memberships.DELETE("/:id/save", h.Unsave)
			memberships.POST("/:id/admit", h.Admit)
			memberships.POST("/:id/deny", h.Deny)
			memberships.POST("/:id/expel", h.Expel)
			memberships.POST("/:id/leave", h.Leave)

			// Negotiation
			memberships.POST("/:id/counter", h.ProposeCounter)
			memberships.PUT("/:id/counter", h.UpdateCounter)
			memberships.POST("/:id/agree", h.Agree)
		}

		// Platform tooling
		admin := v1.Group("/admin", middleware.RequireSystem())
		{
			admin.POST("/memberships/:id/kill-off", h.KillOff)
		}
	}
}
