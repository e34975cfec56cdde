package main

import (
	"github.com/arenaworks/peerview/internal/middleware"
	"github.com/arenaworks/peerview/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for the public auth routes
	authLimiter := middleware.NewRateLimiter(5, 10)

	// Health check
	r.GET("/health", svc.healthHandler.CheckHealth)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/login", svc.authHandler.Login)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Reviews
			protected.GET("/reviews", svc.reviewHandler.List)
			protected.GET("/reviews/:id", svc.reviewHandler.GetByID)
			protected.POST("/reviews", svc.reviewHandler.Create)
			protected.PATCH("/reviews/:id", svc.reviewHandler.Update)
			protected.DELETE("/reviews/:id", svc.reviewHandler.Delete)

			// Review items
			protected.PATCH("/review-items/:id", svc.reviewItemHandler.Update)
			protected.DELETE("/review-items/:id", svc.reviewItemHandler.Delete)
			protected.POST("/review-items/:id/comments", svc.reviewItemHandler.CreateComments)

			// Scorecards (read for all users)
			protected.GET("/scorecards", svc.scorecardHandler.List)
			protected.GET("/scorecards/:id", svc.scorecardHandler.GetByID)

			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.AdminRequired())
			{
				admin.POST("/scorecards", svc.scorecardHandler.Create)
				admin.GET("/audit-entries", svc.auditHandler.List)
			}
		}
	}
}
