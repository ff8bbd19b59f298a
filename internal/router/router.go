package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/reslib/internal/config"
	"github.com/muandane/special-stack/reslib/internal/handlers"
	"github.com/muandane/special-stack/reslib/internal/middleware"
)

type Router struct {
	engine *gin.Engine
	logger *slog.Logger
}

// Handlers are the endpoints mounted by Setup. RateLimiter may be nil.
type Handlers struct {
	Resources   *handlers.ResourceHandler
	API         *handlers.API
	Stats       *handlers.StatsHandler
	Health      *handlers.HealthHandler
	RateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	return &Router{
		engine: engine,
		logger: logger,
	}
}

func (r *Router) Setup(cfg *config.Config, h Handlers) http.Handler {
	validationConfig := middleware.ValidationConfig{
		ExcludedPaths: []string{
			"/health",
			"/metrics",
			"/stats",
			"/api/",
		},
		ResourcePrefix: cfg.ResourcePrefix,
	}
	adminPolicy := middleware.AdminPolicy{
		Paths:      []string{"/api/", "/stats", "/metrics"},
		AllowedIPs: cfg.AdminAllowedIPs,
	}

	metricsMiddleware := middleware.NewMetricsMiddleware(cfg.ResourcePrefix)
	apiOpts := handlers.HandlerOptions{Logger: r.logger}

	r.engine.GET("/health", adapt(h.Health))
	r.engine.GET("/metrics", adapt(metricsMiddleware))
	r.engine.GET("/stats", adapt(h.Stats))

	api := r.engine.Group("/api")
	api.GET("/resources", adapt(handlers.Handle(h.API.DescribeResource, apiOpts)))
	api.GET("/libraries/:library", adapt(handlers.Handle(h.API.LibraryExists, handlers.HandlerOptions{
		Logger:     r.logger,
		PathParams: []string{"library"},
	})))
	api.GET("/views", adapt(handlers.Handle(h.API.ViewResources, apiOpts)))

	resourceRoute := "/" + strings.Trim(cfg.ResourcePrefix, "/") + "/*name"
	r.engine.GET(resourceRoute, adapt(h.Resources))
	r.engine.HEAD(resourceRoute, adapt(h.Resources))

	chain := []func(http.Handler) http.Handler{
		middleware.WithValidation(validationConfig),
		middleware.WithAdminAccessControl(adminPolicy, r.logger),
	}
	if h.RateLimiter != nil {
		chain = append(chain, h.RateLimiter.WithRateLimit)
	}
	chain = append(chain,
		metricsMiddleware.WithMetrics,
		middleware.WithLogging(r.logger),
	)
	return middleware.Chain(r.engine, chain...)
}

// adapt mounts a net/http handler on gin, exposing route parameters through
// Request.PathValue.
func adapt(h http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range c.Params {
			c.Request.SetPathValue(p.Key, p.Value)
		}
		h.ServeHTTP(c.Writer, c.Request)
	}
}
