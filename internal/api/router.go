package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/talentscore/internal/api/handler"
	"github.com/timmy/talentscore/internal/api/middleware"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/notify"
	"github.com/timmy/talentscore/internal/repository"
	"github.com/timmy/talentscore/internal/service"
	"github.com/timmy/talentscore/internal/storage"
)

// RouterDeps are the services the HTTP layer exposes. Dispatcher, Hub,
// Archive and HealthChecks are optional.
type RouterDeps struct {
	Scoring      *service.ScoringService
	Sweeper      *service.RecoverySweeper
	Store        repository.ScoringJobStore
	Dispatcher   *service.Dispatcher
	Hub          *notify.Hub
	Archive      *storage.AuditArchive
	HealthChecks map[string]handler.PingFunc
	Logger       *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps, mode string, cors middleware.CORSConfig) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cors))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.HealthChecks)
	jobHandler := handler.NewScoringJobHandler(deps.Scoring)
	adminHandler := handler.NewAdminHandler(deps.Sweeper, deps.Store, deps.Archive, log)

	var dispatcherStats handler.DispatcherStats
	if deps.Dispatcher != nil {
		dispatcherStats = deps.Dispatcher
	}
	statsHandler := handler.NewStatsHandler(deps.Scoring, dispatcherStats)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Scoring jobs
		v1.POST("/scoring-jobs", jobHandler.CreateJob)
		v1.GET("/scoring-jobs", jobHandler.ListJobs)
		v1.GET("/scoring-jobs/:id", jobHandler.GetJob)
		v1.POST("/scoring-jobs/:id/retry", jobHandler.RetryJob)

		if deps.Hub != nil {
			eventsHandler := handler.NewEventsHandler(deps.Hub, func(origin string) bool {
				return middleware.IsOriginAllowed(origin, cors)
			})
			v1.GET("/events", eventsHandler.Stream)
		}

		// Stats
		v1.GET("/stats", statsHandler.GetStats)

		// Operator recovery
		if deps.Sweeper != nil {
			admin := v1.Group("/admin")
			admin.GET("/stale", adminHandler.ListStale)
			admin.POST("/sweep", adminHandler.Sweep)
			admin.POST("/scoring-jobs/:id/recover", adminHandler.Recover)
			admin.GET("/scoring-jobs/:id/audit", adminHandler.GetAudit)
		}
	}

	return r
}
