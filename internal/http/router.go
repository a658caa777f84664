package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"termserve/internal/logging"
	"termserve/internal/registry"
)

// NewRouter builds the debug router: session inspection endpoints plus
// a Prometheus metrics endpoint. The gatherer may be nil, in which
// case the default registry is exposed.
func NewRouter(reg *registry.Registry, gatherer prometheus.Gatherer, log *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if log == nil {
		log = logging.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))
	router.Use(RateLimit(DefaultRateLimitConfig()))

	handlers := NewHandlers(reg)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.CloseSession)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return router
}
