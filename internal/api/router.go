package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/stylematch/internal/api/handler"
	"github.com/timmy/stylematch/internal/api/middleware"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
	"github.com/timmy/stylematch/internal/service"
	"github.com/timmy/stylematch/internal/source"
)

// Dependencies are the services the router wires into handlers.
type Dependencies struct {
	Inspiration  *service.InspirationService
	Index        *service.IndexService
	Sources      map[string]source.Source
	Metrics      *metrics.Recorder
	Logger       *logger.Logger
	BreakerState func() string
}

// Router is the configured Gin engine plus handlers that own background work.
type Router struct {
	*gin.Engine
	Admin *handler.AdminHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Dependencies, cfg config.ServerConfig) *Router {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.BreakerState)
	inspirationHandler := handler.NewInspirationHandler(deps.Inspiration, cfg.MaxUploadBytes)
	mediaHandler := handler.NewMediaHandler(deps.Index)
	adminHandler := handler.NewAdminHandler(deps.Index, deps.Sources)

	r.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		inspiration := v1.Group("/inspiration")
		inspiration.POST("/analyze", inspirationHandler.Analyze)
		inspiration.POST("/match", inspirationHandler.Match)
		inspiration.POST("/search", inspirationHandler.Search)
		inspiration.GET("/modes", inspirationHandler.Modes)

		v1.GET("/media/:id", mediaHandler.GetMedia)

		admin := v1.Group("/admin")
		admin.GET("/sources", adminHandler.ListSources)
		admin.POST("/index", adminHandler.TriggerIndex)
		admin.GET("/index/status", adminHandler.GetIndexStatus)
		admin.GET("/jobs", adminHandler.ListJobs)
		admin.GET("/jobs/:id", adminHandler.GetJob)
		admin.POST("/retry", adminHandler.RetryUnusable)
		admin.GET("/stats", adminHandler.GetStats)
		admin.DELETE("/media/:id", mediaHandler.DeleteMedia)
	}

	return &Router{Engine: r, Admin: adminHandler}
}
