package main

import (
	"github.com/gin-gonic/gin"
	"github.com/nezhub/backend/internal/handlers"
	"github.com/nezhub/backend/internal/middleware"
	"github.com/nezhub/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.corsOrigins...))

	// Rate limiters for write-heavy endpoints
	authLimiter := middleware.NewRateLimiter(1, 5)
	writeLimiter := middleware.NewRateLimiter(5, 10)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics())

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)

			// Search (static segments before /projects/:id)
			protected.GET("/projects/search", svc.searchHandler.Search)
			protected.GET("/projects/trending", svc.searchHandler.Trending)
			protected.GET("/users/:id/projects", svc.searchHandler.ByCreator)

			// Projects
			protected.GET("/projects", svc.projectHandler.List)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.PUT("/projects/:id", svc.projectHandler.Update)
			protected.DELETE("/projects/:id", svc.projectHandler.Delete)

			// Collaborations
			protected.POST("/projects/:id/join", writeLimiter.Middleware(), svc.collaborationHandler.Join)
			protected.GET("/projects/:id/collaborations", svc.collaborationHandler.ListByProject)
			protected.GET("/collaborations/me", svc.collaborationHandler.ListMine)
			protected.PUT("/collaborations/:id/approve", svc.collaborationHandler.Approve)
			protected.PUT("/collaborations/:id/reject", svc.collaborationHandler.Reject)

			// Votes
			protected.GET("/projects/:id/vote", svc.voteHandler.HasVoted)
			protected.POST("/projects/:id/vote", writeLimiter.Middleware(), svc.voteHandler.Vote)
			protected.DELETE("/projects/:id/vote", writeLimiter.Middleware(), svc.voteHandler.Unvote)

			// Statistics
			protected.GET("/stats/skills", svc.statsHandler.PopularSkills)
			protected.GET("/stats/status", svc.statsHandler.StatusCounts)
		}
	}
}
