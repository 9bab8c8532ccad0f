package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/handler"
	"github.com/stemsi/toeic-session/internal/middleware"
	"github.com/stemsi/toeic-session/internal/response"
	"github.com/stemsi/toeic-session/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Test    *handler.TestHandler
	Attempt *handler.AttemptHandler
	Result  *handler.ResultHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// startLimiter throttles attempt starts per client IP; nil disables it.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	startLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", middleware.NoStore(), handlers.System.Health)

	learnerAuth := []gin.HandlerFunc{
		middleware.RequireLearnerJWT(authService),
		middleware.RejectRevokedTokens(authService),
	}

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(learnerAuth...)
	{
		auth.GET("/me", handlers.Auth.Me)
		auth.POST("/logout", handlers.Auth.Logout)
	}

	// ─── 2. Learner Group (JWT + Revocation) ───────────────────────────
	learnerAPI := router.Group("/api/v1")
	learnerAPI.Use(learnerAuth...)
	{
		tests := learnerAPI.Group("/tests")
		tests.Use(middleware.CacheControl(60))
		{
			tests.GET("", handlers.Test.ListTests)
			tests.GET("/:id", handlers.Test.GetTest)
			tests.GET("/:id/items", handlers.Test.GetItems)
		}

		attempts := learnerAPI.Group("/attempts")
		attempts.Use(middleware.NoStore())
		{
			start := []gin.HandlerFunc{handlers.Attempt.StartAttempt}
			if startLimiter != nil {
				start = append([]gin.HandlerFunc{startLimiter.Middleware()}, start...)
			}
			attempts.POST("", start...)
			attempts.GET("/:id", handlers.Attempt.GetAttempt)
			attempts.GET("/:id/items", handlers.Attempt.GetItems)
			attempts.GET("/:id/sheet", handlers.Attempt.GetSheet)
			attempts.POST("/:id/submit", handlers.Attempt.SubmitAttempt)
			attempts.DELETE("/:id", handlers.Attempt.AbandonAttempt)
		}

		results := learnerAPI.Group("/results")
		{
			results.GET("", handlers.Result.ListResults)
			results.GET("/:id", handlers.Result.GetResult)
		}
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(authService))
	{
		ws.GET("/attempts/:id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService), middleware.RejectRevokedTokens(authService))
	{
		adminAPI.GET("/me", handlers.Auth.Me)

		adminAPI.POST("/tests/:id/refresh-cache",
			middleware.RequirePermission(service.PermissionTestsWrite),
			handlers.Test.RefreshCache,
		)
		adminAPI.GET("/tests/:id/monitor",
			middleware.RequirePermission(service.PermissionTestsMonitor),
			handlers.Monitor.MonitorTestSSE,
		)

		adminAPI.GET("/system/metrics",
			middleware.RequirePermission(service.PermissionTestsMonitor),
			handlers.System.SystemMetricsSSE,
		)
	}

	return router
}
