package main

import (
	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/middleware"
	"github.com/huangang/soundvault/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(middleware.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins))

	api := r.Group("/api/v1")
	{
		// Public
		api.GET("/health", svc.healthHandler.CheckHealth)
		api.POST("/login", svc.authHandler.Login)
		api.POST("/register", svc.authHandler.Register)
		api.POST("/refresh", svc.authHandler.Refresh)

		session := api.Group("")
		session.Use(middleware.SessionRequired(svc.authService))
		{
			// Session and profile; the auth service writes its own audit entries
			session.DELETE("/logout", svc.authHandler.Logout)
			session.DELETE("/logout_all", svc.authHandler.LogoutAll)
			session.GET("/profile", svc.authHandler.Profile)
			session.PATCH("/update_profile", svc.authHandler.UpdateProfile)
			session.POST("/change_password", svc.authHandler.ChangePassword)
		}

		catalog := api.Group("")
		catalog.Use(middleware.SessionRequired(svc.authService), middleware.AuditLog(svc.audit))
		{
			// Users
			catalog.GET("/users", svc.userHandler.List)
			catalog.GET("/users/unassigned_artists", svc.userHandler.UnassignedArtists)
			catalog.GET("/users/:id", svc.userHandler.Get)
			catalog.POST("/users", svc.userHandler.Create)
			catalog.PATCH("/users/:id", svc.userHandler.Update)
			catalog.DELETE("/users/:id", svc.userHandler.Delete)

			// Artists
			catalog.GET("/artists", svc.artistHandler.List)
			catalog.GET("/artists/all", svc.artistHandler.All)
			catalog.GET("/artists/my_artists", svc.artistHandler.MyArtists)
			catalog.GET("/artists/csv_export", svc.artistHandler.CSVExport)
			catalog.POST("/artists/csv_import", svc.artistHandler.CSVImport)
			catalog.POST("/artists", svc.artistHandler.Create)
			catalog.PATCH("/artists/:id", svc.artistHandler.Update)
			catalog.DELETE("/artists/:id", svc.artistHandler.Delete)
			catalog.PATCH("/artists/:id/assign_manager", svc.artistHandler.AssignManager)
			catalog.GET("/artists/:id/public_show", svc.artistHandler.PublicShow)

			// Albums
			catalog.GET("/albums", svc.albumHandler.List)
			catalog.GET("/albums/all", svc.albumHandler.All)
			catalog.GET("/albums/:id", svc.albumHandler.Get)
			catalog.POST("/albums", svc.albumHandler.Create)
			catalog.PATCH("/albums/:id", svc.albumHandler.Update)
			catalog.DELETE("/albums/:id", svc.albumHandler.Delete)

			// Musics
			catalog.GET("/musics", svc.musicHandler.List)
			catalog.GET("/musics/all", svc.musicHandler.All)
			catalog.GET("/musics/:id", svc.musicHandler.Get)
			catalog.POST("/musics", svc.musicHandler.Create)
			catalog.PATCH("/musics/:id", svc.musicHandler.Update)
			catalog.DELETE("/musics/:id", svc.musicHandler.Delete)

			// Genres
			catalog.GET("/genres", svc.genreHandler.List)
			catalog.GET("/genres/search", svc.genreHandler.Search)
			catalog.GET("/genres/:id", svc.genreHandler.Get)
			catalog.POST("/genres", svc.genreHandler.Create)
			catalog.PATCH("/genres/:id", svc.genreHandler.Update)
			catalog.DELETE("/genres/:id", svc.genreHandler.Delete)

			// System logs (super_admin)
			catalog.GET("/system_logs", svc.systemLogHandler.List)
		}
	}
}
