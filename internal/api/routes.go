package api

import (
	"github.com/File-Sharing-BondBridg/Link-Service/internal/api/handlers"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	"github.com/gin-gonic/gin"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PATCH, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

// RegisterRoutes mounts the owner API behind auth and the public share routes.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, auth gin.HandlerFunc) {
	r.Use(corsMiddleware(), logger.Middleware())

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		authed := api.Group("", auth)

		// File endpoints
		authed.POST("/upload", h.UploadFile)
		authed.GET("/files", h.ListFiles)
		authed.GET("/files/:id", h.GetFile)
		authed.GET("/files/:id/download", h.DownloadFile)
		authed.DELETE("/files/:id", h.DeleteFile)
		authed.GET("/stats", h.GetMyFileStats)

		// Folder endpoints
		authed.POST("/folders", h.CreateFolder)
		authed.GET("/folders", h.ListFolders)
		authed.DELETE("/folders/:id", h.DeleteFolder)

		// Share link management
		authed.POST("/files/:id/links", h.IssueLink)
		authed.GET("/links", h.ListLinks)
		authed.DELETE("/links/:token", h.DeactivateLink)
	}

	// Public: the token is the credential.
	share := r.Group("/share")
	{
		share.GET("/:token", h.RedeemLink)
		share.GET("/:token/info", h.LinkInfo)
	}
}
