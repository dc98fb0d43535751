package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, s *Server) {
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	// Sessions.
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/logout", s.handleLogout)
	api.GET("/auth/me", s.authenticate, s.handleMe)

	authed := api.Group("", s.authenticate)

	// Pipelines and their boards.
	authed.GET("/pipelines", s.handlePipelineList)
	authed.POST("/pipelines", s.handlePipelineCreate)
	authed.GET("/pipelines/:id", s.handlePipelineGet)
	authed.PATCH("/pipelines/:id", s.handlePipelineRename)
	authed.DELETE("/pipelines/:id", s.handlePipelineDelete)
	authed.POST("/pipelines/:id/stages", s.handleStageCreate)
	authed.PATCH("/stages/:id", s.handleStageRename)
	authed.DELETE("/stages/:id", s.handleStageDelete)
	authed.POST("/stages/:id/cards", s.handleCardCreate)
	authed.POST("/cards/:id/move", s.handleCardMove)
	authed.GET("/cards/:id/history", s.handleCardHistory)
	authed.PATCH("/cards/:id", s.handleCardUpdate)
	authed.DELETE("/cards/:id", s.handleCardDelete)

	// Lead lists.
	authed.GET("/lead-folders", s.handleFolderList)
	authed.POST("/lead-folders", s.handleFolderCreate)
	authed.GET("/lead-folders/:id", s.handleFolderGet)
	authed.PATCH("/lead-folders/:id", s.handleFolderRename)
	authed.DELETE("/lead-folders/:id", s.handleFolderDelete)
	authed.POST("/lead-folders/:id/files", s.handleFileUpload)
	authed.GET("/lead-files/:id", s.handleFileGet)
	authed.GET("/lead-files/:id/export", s.handleFileExport)
	authed.PATCH("/lead-rows/:id", s.handleRowReached)
}

func (s *Server) handleHealth(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}
