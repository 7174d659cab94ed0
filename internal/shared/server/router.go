package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tender-evaluator/internal/audit"
	"tender-evaluator/internal/services/health"
	"tender-evaluator/internal/sessions"
	"tender-evaluator/internal/shared/auth"
	"tender-evaluator/internal/shared/config"
	"tender-evaluator/internal/shared/metrics"
	"tender-evaluator/internal/shared/server/middleware"
	"tender-evaluator/internal/shared/server/respond"
	"tender-evaluator/internal/uploads"
	"tender-evaluator/internal/workflow"
)

// RouterDeps carries the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Verifier        *auth.Verifier
	Sessions        middleware.SessionResolver
	Health          *health.Service
	SessionHandler  *sessions.Handler
	WorkflowHandler *workflow.Handler
	UploadHandler   *uploads.Handler
	AuditHandler    *audit.Handler
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Verifier, deps.Sessions),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    middleware.DefaultRateLimitRules(),
			GroupFor: middleware.WorkflowRateGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	if deps.SessionHandler != nil {
		deps.SessionHandler.RegisterRoutes(api)
	}
	if deps.WorkflowHandler != nil {
		deps.WorkflowHandler.RegisterRoutes(api)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(api)
	}
	if deps.AuditHandler != nil {
		deps.AuditHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
