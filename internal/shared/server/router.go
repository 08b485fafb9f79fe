package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"underwriting-backend/internal/services/health"
	"underwriting-backend/internal/shared/config"
	"underwriting-backend/internal/shared/metrics"
	"underwriting-backend/internal/shared/server/middleware"
	"underwriting-backend/internal/shared/server/respond"
	"underwriting-backend/internal/status"
	"underwriting-backend/internal/underwriting"
	"underwriting-backend/internal/uploads"
	"underwriting-backend/internal/web"
)

// Model-backed routes each get their own bucket per client.
var modelRouteGroups = map[string]string{
	"/upload":     "UPLOAD",
	"/underwrite": "UNDERWRITE",
}

// RouterDeps contains dependencies needed to build the router.
type RouterDeps struct {
	Config              config.Config
	Health              *health.Service
	UploadHandler       *uploads.Handler
	UnderwritingHandler *underwriting.Handler
	StatusHandler       *status.Handler
	RateLimiter         *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/health", func(c *gin.Context) {
		body, ok := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, body)
	})
	r.GET("/metrics", metrics.Handler())
	web.RegisterRoutes(r)

	var limited []gin.HandlerFunc
	if deps.Config.RateLimitRPS > 0 {
		rule := middleware.RateLimitRule{Rate: deps.Config.RateLimitRPS, Burst: deps.Config.RateLimitBurst}
		rules := make(map[string]middleware.RateLimitRule, len(modelRouteGroups))
		for _, group := range modelRouteGroups {
			rules[group] = rule
		}
		limited = append(limited, middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rules,
			GroupFor: func(c *gin.Context) string { return modelRouteGroups[c.FullPath()] },
			Limiter:  deps.RateLimiter,
		}))
	}

	if deps.StatusHandler != nil {
		deps.StatusHandler.RegisterRoutes(r)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(r, limited...)
	}
	if deps.UnderwritingHandler != nil {
		deps.UnderwritingHandler.RegisterRoutes(r, limited...)
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
