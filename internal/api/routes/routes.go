package routes

import (
	"llmdash/internal/api/handlers"
	"llmdash/internal/api/middleware"
	"llmdash/internal/config"
	"llmdash/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SetupRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config) {
	// Initialize services
	authService := services.NewAuthService(db, cfg)
	userService := services.NewUserService(db, cfg)
	auditService := services.NewAuditService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService, auditService, cfg)
	userHandler := handlers.NewUserHandler(db, cfg)
	analyticsHandler := handlers.NewAnalyticsHandler(db)
	queryHandler := handlers.NewQueryHandler(db)
	monitoringHandler := handlers.NewMonitoringHandler(db)
	auditHandler := handlers.NewAuditHandler(db)
	exportHandler := handlers.NewExportHandler(db, cfg)

	// Middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.CORSMiddleware())

	// Public routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"message": "LLM dashboard API is running",
			})
		})

		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
		}

		// Export downloads are gated by their own signed token
		api.GET("/exports/download", exportHandler.Download)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService, cfg.Session.CookieName))
	{
		// Auth routes (protected)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetMe)
		protected.POST("/auth/password", authHandler.ChangePassword)
		protected.GET("/auth/sessions", authHandler.GetSessions)

		// Analytics routes
		analytics := protected.Group("/analytics")
		{
			analytics.GET("/:domain", analyticsHandler.GetSeries)
			analytics.GET("/:domain/summary", analyticsHandler.GetSummary)
		}

		// Monitoring routes
		monitoring := protected.Group("/monitoring")
		{
			monitoring.GET("/stats", monitoringHandler.GetStats)
			monitoring.POST("/snapshot", monitoringHandler.Snapshot)
		}

		// Query history and saved queries
		queries := protected.Group("/queries")
		{
			queries.GET("/history", queryHandler.GetHistory)
			queries.POST("/history", queryHandler.RecordEvent)
			queries.GET("", queryHandler.ListSaved)
			queries.POST("", queryHandler.Save)
			queries.DELETE("/:id", queryHandler.Delete)
		}

		// User management routes (admin only)
		users := protected.Group("/users")
		users.Use(middleware.RequireRole("admin"))
		{
			users.GET("", userHandler.GetUsers)
			users.GET("/:id", userHandler.GetUser)
			users.POST("", userHandler.CreateUser)
			users.PUT("/:id", userHandler.UpdateUser)
			users.DELETE("/:id", userHandler.DeleteUser)
			users.POST("/:id/password", userHandler.UpdatePassword)
		}

		// Audit log (admin only)
		protected.GET("/audit", middleware.RequireRole("admin"), auditHandler.List)

		// Exports (admin only)
		protected.POST("/exports/:domain", middleware.RequireRole("admin"), exportHandler.Issue)
	}
}
