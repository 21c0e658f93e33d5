package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/userhub/backend/internal/api/handlers"
	"github.com/userhub/backend/internal/api/middleware"
	"github.com/userhub/backend/internal/authz"
	"github.com/userhub/backend/internal/config"
	"github.com/userhub/backend/internal/metrics"
	"github.com/userhub/backend/internal/models"
	"github.com/userhub/backend/internal/services"
)

// Register wires up API routes and performs automatic migrations. google may
// be nil when Google sign-in is not configured.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, google services.GoogleVerifier) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Activity{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/api/v1/health", handlers.HealthHandler)

	api := router.Group("/api/v1")

	activityService := services.NewActivityService(db)
	userService := services.NewUserService(db, activityService)
	authService := services.NewAuthService(userService, activityService, google, cfg)

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	activityHandler := handlers.NewActivityHandler(activityService)

	authRequired := middleware.Auth(authService)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	adminOrManager := middleware.RequireRole(models.RoleAdmin, models.RoleManager)
	canViewDirectory := middleware.Authorize(authz.ActionViewDirectory)
	canViewStats := middleware.Authorize(authz.ActionViewStats)

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/google/verify", authHandler.GoogleVerify)

	protected := api.Group("/")
	protected.Use(authRequired)
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/auth/refresh", authHandler.Refresh)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		protected.POST("/users", adminOrManager, userHandler.Create)
		protected.GET("/users", canViewDirectory, userHandler.List)
		protected.GET("/users/stats", canViewStats, userHandler.Stats)
		protected.GET("/users/inactive", canViewStats, userHandler.Inactive)
		protected.GET("/users/me", userHandler.Me)
		protected.PATCH("/users/me", userHandler.UpdateMe)
		protected.GET("/users/:id", userHandler.GetByID)
		protected.PATCH("/users/:id", adminOnly, userHandler.UpdateByID)
		protected.DELETE("/users/:id", adminOnly, userHandler.Delete)

		protected.GET("/activities", activityHandler.List)
	}

	return nil
}
