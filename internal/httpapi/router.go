package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"maukemana-backend/internal/config"
	"maukemana-backend/internal/database"
	"maukemana-backend/internal/middleware"
)

// Setup builds the gin.Engine exposing job submission, job control,
// and progress subscription routes on top of an already-wired
// Handler.
func Setup(db *database.DB, h *Handler) *gin.Engine {
	router := setupBaseRouter()

	router.GET("/health", healthCheck(db))

	v1 := router.Group("/api/v1")
	{
		batches := v1.Group("/batches")
		{
			batches.POST("", h.CreateBatchJob)
			batches.GET("", h.ListBatchJobs)
			batches.GET("/:id", h.GetBatchJob)
			batches.POST("/:id/cancel", h.CancelBatchJob)
			batches.POST("/:id/pause", h.PauseBatchJob)
			batches.POST("/:id/resume", h.ResumeBatchJob)
			batches.GET("/:id/progress", h.SubscribeProgress)
		}
	}

	router.GET("/api", apiDocumentation())

	return router
}

func setupBaseRouter() *gin.Engine {
	router := gin.New()

	router.Use(otelgin.Middleware("maukemana-batch-core"))
	router.Use(middleware.Observability())
	router.Use(middleware.SecurityHeaders())

	router.SetTrustedProxies(nil)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.GetAllowedOrigins()
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Authorization", "Accept", "User-Agent", "X-User-ID",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	return router
}

func healthCheck(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "postgresql",
			"timestamp": time.Now().Unix(),
		})
	}
}

func apiDocumentation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "Batch Processing Core",
			"description": "Poster badge enrichment batch core",
			"endpoints": map[string]string{
				"health":   "GET /health",
				"create":   "POST /api/v1/batches",
				"list":     "GET /api/v1/batches",
				"get":      "GET /api/v1/batches/:id",
				"cancel":   "POST /api/v1/batches/:id/cancel",
				"pause":    "POST /api/v1/batches/:id/pause",
				"resume":   "POST /api/v1/batches/:id/resume",
				"progress": "GET /api/v1/batches/:id/progress (WebSocket)",
			},
		})
	}
}
