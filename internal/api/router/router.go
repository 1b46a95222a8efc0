package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tdhoang/clipsvc/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "clip-api-service",
		})
	})

	clipHandler := handler.NewClipHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		clips := v1.Group("/clips")
		{
			// POST /api/v1/clips - Submit a new clip job
			clips.POST("", clipHandler.CreateClip)

			// GET /api/v1/clips - List clip jobs with filtering and pagination
			clips.GET("", clipHandler.ListClips)

			// GET /api/v1/clips/:job_id - Poll clip job status
			clips.GET("/:job_id", clipHandler.GetClip)
		}
	}

	return r
}
