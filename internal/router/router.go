package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/scribe/internal/handler/prometheus"
	"github.com/jwalitptl/scribe/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	// Prefix is the group every API handler is mounted under.
	Prefix         string
	Mode           string
	RequestTimeout time.Duration
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	// Render writes errors in this API's response shape.
	Render middleware.Renderer
}

type Router struct {
	engine  *gin.Engine
	config  RouterConfig
	metrics *prometheus.Handler
	auth    *middleware.AuthMiddleware
}

// NewRouter builds the engine with the middleware chain both servers share.
// auth may be nil, in which case API routes are public.
func NewRouter(metrics *prometheus.Handler, auth *middleware.AuthMiddleware, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New() // Use New() instead of Default() for more control

	r := &Router{
		engine:  engine,
		config:  config,
		metrics: metrics,
		auth:    auth,
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(config.Render),
		middleware.Logger(),
	)
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}
	// Inside metrics so errors attached by handlers are counted with their status.
	engine.Use(middleware.ErrorHandler(config.Render))

	// Add CORS with config
	engine.Use(middleware.CORS(config.CORSConfig))

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit(config.Render))
	}

	engine.Use(middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}, config.Render))

	return r
}

// Setup mounts the public handlers at the root and the API handlers under
// the configured prefix, behind authentication when it is enabled.
func (r *Router) Setup(public []Handler, api []Handler) {
	root := r.engine.Group("")
	for _, h := range public {
		h.RegisterRoutes(root)
	}
	if r.metrics != nil {
		r.metrics.RegisterRoutes(root)
	}

	group := r.engine.Group(r.config.Prefix)
	if r.auth != nil {
		group.Use(r.auth.Authenticate())
	}
	for _, h := range api {
		h.RegisterRoutes(group)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Use(middleware ...gin.HandlerFunc) {
	r.engine.Use(middleware...)
}
