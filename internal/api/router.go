package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jfjoao12/website-autobuilder/internal/api/admin"
	"github.com/jfjoao12/website-autobuilder/internal/api/generate"
	"github.com/jfjoao12/website-autobuilder/internal/api/middleware"
	"github.com/jfjoao12/website-autobuilder/internal/repository"
	"github.com/jfjoao12/website-autobuilder/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	StreamBuffer int
}

// SetupRouter sets up the Gin router
func SetupRouter(
	genService *service.GenerationService,
	exportService *service.ExportService,
	runs *repository.RunRepository,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Generation API (public, session-scoped)
	genHandler := generate.NewHandler(genService, exportService, cfg.StreamBuffer)
	genGroup := r.Group("/api")
	genHandler.RegisterRoutes(genGroup)

	// Run archive (requires API key)
	if runs != nil {
		adminHandler := admin.NewHandler(runs)
		adminGroup := r.Group("/api/admin")
		adminGroup.Use(middleware.Auth(cfg.APIKey))
		adminHandler.RegisterRoutes(adminGroup)
	}

	return r
}
