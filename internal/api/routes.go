package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/credit-engine/internal/config"
	"github.com/rawblock/credit-engine/internal/db"
	"github.com/rawblock/credit-engine/internal/metrics"
	"github.com/rawblock/credit-engine/internal/pipeline"
)

// SetupRouter wires middleware and the scoring API surface. dbStore may be
// nil; persistence-backed endpoints then answer 503 while scoring itself
// keeps working.
func SetupRouter(cfg *config.Config, dbStore *db.PostgresStore, runner *pipeline.Runner, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(metrics.Middleware())

	handler := &APIHandler{dbStore: dbStore, runner: runner, wsHub: wsHub}

	// Operational endpoints stay outside auth and rate limiting.
	r.GET("/health", handler.handleHealth)
	r.GET("/metrics", metrics.Handler())

	limiter := NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	api := r.Group("/api/v1")
	api.Use(limiter.Middleware())

	// Streaming and progress are public so dashboards can watch runs.
	api.GET("/ws", wsHub.Subscribe)
	api.GET("/score/progress", handler.handleProgress)

	protected := api.Group("")
	protected.Use(AuthMiddleware(cfg.APIAuthToken))
	{
		protected.POST("/score", handler.handleScore)
		protected.POST("/score/async", handler.handleScoreAsync)
		protected.GET("/runs", handler.handleGetRuns)
		protected.GET("/runs/:id", handler.handleGetRun)
		protected.GET("/runs/:id/scores", handler.handleGetRunScores)
		protected.GET("/runs/:id/analysis", handler.handleGetRunAnalysis)
		protected.GET("/runs/:id/report", handler.handleGetRunReport)
		protected.GET("/wallets/:address", handler.handleGetWallet)
		protected.GET("/categories", handler.handleGetCategories)
	}

	return r
}

// corsMiddleware allows the configured origins.
// Production: ALLOWED_ORIGINS=https://rawblock.net,https://www.rawblock.net
// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Check if the request origin is in the allowed list
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// BroadcastProgress returns a pipeline observer that pushes stage
// transitions to all WebSocket subscribers.
// This is wired as the observer callback for the pipeline runner.
func BroadcastProgress(wsHub *Hub) pipeline.Observer {
	return func(p pipeline.Progress) {
		wsHub.BroadcastEvent("pipeline_progress", p)
	}
}
