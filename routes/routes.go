package routes

import (
	"nuam-exchange-api/controllers"
	"nuam-exchange-api/middleware"
	"nuam-exchange-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)
			public.POST("/register", controllers.Register)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "NuamExchange API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// Account
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Usuario registry
			usuarios := protected.Group("/usuarios")
			{
				usuarios.GET("", controllers.ListUsuarios)
				usuarios.POST("", controllers.CreateUsuario)
				usuarios.GET("/:id", controllers.GetUsuario)
				usuarios.PUT("/:id", controllers.UpdateUsuario)
				usuarios.GET("/:id/history", controllers.GetUsuarioHistory)
				usuarios.DELETE("/:id", controllers.DeleteUsuario)

				// Mass deletion is restricted to management roles
				usuarios.POST("/bulk-delete",
					middleware.RequireRole(models.RoleAdmin, models.RoleManager),
					controllers.BulkDeleteUsuarios)
			}

			// Categorías
			categorias := protected.Group("/categorias")
			{
				categorias.GET("", controllers.GetCategorias)
				categorias.POST("",
					middleware.RequireRole(models.RoleAdmin, models.RoleManager),
					controllers.CreateCategoria)
			}

			// Bulk imports
			imports := protected.Group("/imports")
			{
				imports.POST("", controllers.UploadImport)
				imports.GET("", controllers.ListImportRuns)
				imports.GET("/template", controllers.DownloadImportTemplate)
				imports.GET("/:id", controllers.GetImportRun)
				imports.POST("/:id/cancel", controllers.CancelImportRun)
			}

			// Dashboard
			protected.GET("/dashboard/stats", controllers.GetDashboardStats)
		}
	}
}
